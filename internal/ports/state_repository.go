package ports

import (
	"context"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

// SessionStateRepository persists the standalone client's non-secret
// session metadata between invocations. The credential itself lives in
// the SecretStore; the state only carries a reference to it.
type SessionStateRepository interface {
	Get(ctx context.Context, key domain.TenantKey) (domain.SessionState, error)
	List(ctx context.Context) ([]domain.SessionState, error)
	Save(ctx context.Context, state domain.SessionState) error
	Delete(ctx context.Context, key domain.TenantKey) error
}
