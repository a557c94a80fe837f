package ports

import (
	"context"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

// OpResult is the uniform success payload returned by collaborator
// operations. Failures travel as errors and are folded into the step
// result by the gateway.
type OpResult struct {
	Message string
	Data    map[string]any
}

// FileOps mutates and inspects a session's working copy. Paths are
// relative to the working copy root.
type FileOps interface {
	Create(ctx context.Context, path string, content []byte) (OpResult, error)
	Read(ctx context.Context, path string) (OpResult, error)
	Modify(ctx context.Context, path string, content []byte, mode domain.ModifyMode) (OpResult, error)
	Delete(ctx context.Context, path string) (OpResult, error)
	Search(ctx context.Context, term string, mode domain.SearchMode) (OpResult, error)
}

// GitOps drives version control for one working copy bound to one
// remote repository and credential.
type GitOps interface {
	Pull(ctx context.Context) (OpResult, error)
	Commit(ctx context.Context, message string) (OpResult, error)
	Push(ctx context.Context) (OpResult, error)
	CreateBranch(ctx context.Context, name string) (OpResult, error)
	SwitchBranch(ctx context.Context, name string) (OpResult, error)
}

// Collaborators builds and releases the per-session collaborator set.
// The registry acquires a working copy once per authenticated session
// and releases it exactly once on eviction.
type Collaborators interface {
	CloneRepository(ctx context.Context, repo domain.RepositoryInfo, credential domain.Credential, user domain.UserInfo) (workingCopy string, err error)
	ReleaseWorkingCopy(workingCopy string) error
	FileOps(workingCopy string) FileOps
	GitOps(workingCopy string, credential domain.Credential, repo domain.RepositoryInfo) GitOps
}
