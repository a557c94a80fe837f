package ports

import "context"

// SecretStore holds bearer credentials at rest for the standalone
// client. Values are capability secrets; implementations must keep them
// out of world-readable locations.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
