package domain

import "time"

// SessionState is the standalone client's persisted view of an
// authenticated session: who authorized, which repository, and where
// the credential lives in the secret store. It never carries the token
// itself.
type SessionState struct {
	Tenant        TenantKey
	User          UserInfo
	Repository    RepositoryInfo
	CredentialRef string
	ObtainedAt    time.Time
}
