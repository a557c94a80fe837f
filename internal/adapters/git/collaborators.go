package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/bnema/gh-commands-gateway/internal/adapters/fs"
	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

const defaultRemoteBase = "https://github.com"

// Workspace clones repositories into per-session directories under a
// common base and hands out file and git collaborators scoped to them.
type Workspace struct {
	baseDir    string
	remoteBase string
	baseFs     afero.Fs
}

var _ ports.Collaborators = (*Workspace)(nil)

type WorkspaceOption func(*Workspace)

// WithRemoteBase points clones at a different host. Used by tests and
// GitHub Enterprise deployments.
func WithRemoteBase(remoteBase string) WorkspaceOption {
	return func(w *Workspace) { w.remoteBase = remoteBase }
}

// NewWorkspace returns a Workspace rooted at baseDir, creating it if
// needed. An empty baseDir falls back to a directory under the system
// temp dir.
func NewWorkspace(baseDir string, opts ...WorkspaceOption) (*Workspace, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "ghg-workspaces")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace base: %w", err)
	}

	workspace := &Workspace{
		baseDir:    baseDir,
		remoteBase: defaultRemoteBase,
		baseFs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(workspace)
	}
	return workspace, nil
}

// CloneRepository checks the repository out into a fresh directory and
// configures commit identity from the authenticated user.
func (w *Workspace) CloneRepository(ctx context.Context, repo domain.RepositoryInfo, credential domain.Credential, user domain.UserInfo) (string, error) {
	workingCopy, err := os.MkdirTemp(w.baseDir, fmt.Sprintf("%s-%s-", repo.Owner, repo.Name))
	if err != nil {
		return "", fmt.Errorf("create working copy dir: %w", err)
	}

	cloneURL := authenticatedURL(w.remoteBase, repo, credential)
	parent := runner{dir: w.baseDir}
	if _, err := parent.run(ctx, "clone", cloneURL, workingCopy); err != nil {
		_ = os.RemoveAll(workingCopy)
		return "", fmt.Errorf("clone %s: %w: %v", repo.FullName, domain.ErrCollaboratorError, err)
	}

	checkout := runner{dir: workingCopy}
	if _, err := checkout.run(ctx, "config", "user.name", user.Name); err != nil {
		_ = os.RemoveAll(workingCopy)
		return "", fmt.Errorf("configure commit author: %w", err)
	}
	if _, err := checkout.run(ctx, "config", "user.email", user.Email); err != nil {
		_ = os.RemoveAll(workingCopy)
		return "", fmt.Errorf("configure commit email: %w", err)
	}

	return workingCopy, nil
}

// ReleaseWorkingCopy removes a checkout. Paths outside the workspace
// base are refused rather than deleted.
func (w *Workspace) ReleaseWorkingCopy(workingCopy string) error {
	if workingCopy == "" {
		return nil
	}

	resolved, err := filepath.Abs(workingCopy)
	if err != nil {
		return fmt.Errorf("resolve working copy path: %w", err)
	}
	base, err := filepath.Abs(w.baseDir)
	if err != nil {
		return fmt.Errorf("resolve workspace base: %w", err)
	}
	if resolved == base || !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s outside workspace base %s", workingCopy, w.baseDir)
	}

	if err := os.RemoveAll(resolved); err != nil {
		return fmt.Errorf("remove working copy: %w", err)
	}
	return nil
}

func (w *Workspace) FileOps(workingCopy string) ports.FileOps {
	return fs.NewOps(w.baseFs, workingCopy)
}

func (w *Workspace) GitOps(workingCopy string, credential domain.Credential, repo domain.RepositoryInfo) ports.GitOps {
	return NewOps(workingCopy, w.remoteBase, credential, repo)
}
