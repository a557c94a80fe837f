package git

import (
	"context"
	"fmt"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

// Ops implements version-control operations on one working copy. The
// origin URL is refreshed with the session credential before every
// network-touching command, so a token rotated on restore still works.
type Ops struct {
	runner    runner
	remoteURL string
}

var _ ports.GitOps = (*Ops)(nil)

func NewOps(workingCopy, remoteBase string, credential domain.Credential, repo domain.RepositoryInfo) *Ops {
	return &Ops{
		runner:    runner{dir: workingCopy},
		remoteURL: authenticatedURL(remoteBase, repo, credential),
	}
}

func (o *Ops) Pull(ctx context.Context) (ports.OpResult, error) {
	if err := o.ensureRemote(ctx); err != nil {
		return ports.OpResult{}, err
	}
	if _, err := o.runner.run(ctx, "pull", "--ff-only"); err != nil {
		return ports.OpResult{}, fmt.Errorf("pull: %w", err)
	}
	return ports.OpResult{Message: "pull completed"}, nil
}

// Commit stages everything and commits. An empty staging area is a
// successful no-op, matching how a batch of only git commands behaves
// on an untouched checkout.
func (o *Ops) Commit(ctx context.Context, message string) (ports.OpResult, error) {
	if _, err := o.runner.run(ctx, "add", "-A"); err != nil {
		return ports.OpResult{}, fmt.Errorf("stage changes: %w", err)
	}

	status, err := o.runner.run(ctx, "status", "--porcelain")
	if err != nil {
		return ports.OpResult{}, fmt.Errorf("inspect status: %w", err)
	}
	if status == "" {
		return ports.OpResult{
			Message: "nothing to commit",
			Data:    map[string]any{"commit_hash": nil},
		}, nil
	}

	if _, err := o.runner.run(ctx, "commit", "-m", message); err != nil {
		return ports.OpResult{}, fmt.Errorf("commit: %w", err)
	}

	commitHash, err := o.runner.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return ports.OpResult{}, fmt.Errorf("resolve commit hash: %w", err)
	}

	return ports.OpResult{
		Message: fmt.Sprintf("commit created: %s", shortHash(commitHash)),
		Data: map[string]any{
			"commit_hash":    commitHash,
			"commit_message": message,
		},
	}, nil
}

// Push publishes the current branch. A branch without an upstream gets
// one on origin instead of failing the step.
func (o *Ops) Push(ctx context.Context) (ports.OpResult, error) {
	if err := o.ensureRemote(ctx); err != nil {
		return ports.OpResult{}, err
	}

	_, upstreamErr := o.runner.run(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}")
	if upstreamErr != nil {
		if _, err := o.runner.run(ctx, "push", "-u", "origin", "HEAD"); err != nil {
			return ports.OpResult{}, fmt.Errorf("push: %w", err)
		}
		return ports.OpResult{
			Message: "push completed",
			Data:    map[string]any{"upstream_created": true},
		}, nil
	}

	if _, err := o.runner.run(ctx, "push"); err != nil {
		return ports.OpResult{}, fmt.Errorf("push: %w", err)
	}
	return ports.OpResult{
		Message: "push completed",
		Data:    map[string]any{"upstream_created": false},
	}, nil
}

func (o *Ops) CreateBranch(ctx context.Context, name string) (ports.OpResult, error) {
	if o.localBranchExists(ctx, name) {
		return ports.OpResult{}, fmt.Errorf("branch %q already exists", name)
	}
	if _, err := o.runner.run(ctx, "checkout", "-b", name); err != nil {
		return ports.OpResult{}, fmt.Errorf("create branch: %w", err)
	}
	return ports.OpResult{
		Message: fmt.Sprintf("branch %q created", name),
		Data:    map[string]any{"branch_name": name},
	}, nil
}

// SwitchBranch checks out a local branch, falling back to a tracking
// branch for a remote of the same name.
func (o *Ops) SwitchBranch(ctx context.Context, name string) (ports.OpResult, error) {
	if o.localBranchExists(ctx, name) {
		if _, err := o.runner.run(ctx, "checkout", name); err != nil {
			return ports.OpResult{}, fmt.Errorf("switch branch: %w", err)
		}
		return switchedResult(name), nil
	}

	if err := o.ensureRemote(ctx); err != nil {
		return ports.OpResult{}, err
	}
	if _, err := o.runner.run(ctx, "fetch", "origin"); err != nil {
		return ports.OpResult{}, fmt.Errorf("fetch origin: %w", err)
	}
	if _, err := o.runner.run(ctx, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+name); err != nil {
		return ports.OpResult{}, fmt.Errorf("branch %q not found locally or on origin", name)
	}
	if _, err := o.runner.run(ctx, "checkout", "-b", name, "--track", "origin/"+name); err != nil {
		return ports.OpResult{}, fmt.Errorf("track remote branch: %w", err)
	}
	return switchedResult(name), nil
}

func (o *Ops) ensureRemote(ctx context.Context) error {
	if _, err := o.runner.run(ctx, "remote", "set-url", "origin", o.remoteURL); err != nil {
		return fmt.Errorf("refresh origin url: %w", err)
	}
	return nil
}

func (o *Ops) localBranchExists(ctx context.Context, name string) bool {
	_, err := o.runner.run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

func switchedResult(name string) ports.OpResult {
	return ports.OpResult{
		Message: fmt.Sprintf("switched to branch %q", name),
		Data:    map[string]any{"current_branch": name},
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
