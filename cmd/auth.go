package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/gh-commands-gateway/internal/adapters/render/report"
	"github.com/bnema/gh-commands-gateway/internal/domain"
)

func newAuthCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage device-flow authentication",
	}

	cmd.AddCommand(newAuthLoginCmd(app), newAuthStatusCmd(app), newAuthLogoutCmd(app))

	return cmd
}

func newAuthLoginCmd(app *app) *cobra.Command {
	var tenant tenantFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize this client for a repository via the device flow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			key, err := tenant.key()
			if err != nil {
				return err
			}

			view, err := app.registry.GetOrCreate(ctx, key)
			if err != nil {
				return err
			}
			if view.Stage == domain.StagePending {
				fmt.Fprintln(cmd.OutOrStdout(), report.RenderAuthPrompt(view.UserCode, view.VerificationURI))

				err = runAuthWaitSpinner(ctx, cmd.OutOrStdout(), func(ctx context.Context) error {
					return app.waitForAuthorization(ctx, key)
				})
				if err != nil {
					return err
				}
			}

			if err := app.persistSession(ctx, key); err != nil {
				return err
			}

			view, err = app.registry.Status(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s for %s\n", view.User.Login, key.RepoFullName())
			return nil
		},
	}

	tenant.register(cmd)

	return cmd
}

func newAuthStatusCmd(app *app) *cobra.Command {
	var tenant tenantFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session for a repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := tenant.key()
			if err != nil {
				return err
			}

			state, err := app.stateRepo.Get(cmd.Context(), key)
			if errors.Is(err, domain.ErrSessionNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "No session for %s. Run 'ghg auth login' first.\n", key.RepoFullName())
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s for %s (since %s)\n",
				state.User.Login, key.RepoFullName(), state.ObtainedAt.Format(time.RFC3339))
			return nil
		},
	}

	tenant.register(cmd)

	return cmd
}

func newAuthLogoutCmd(app *app) *cobra.Command {
	var tenant tenantFlags

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Evict the session and delete the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			key, err := tenant.key()
			if err != nil {
				return err
			}

			if err := app.registry.Evict(ctx, key); err != nil {
				return err
			}
			if err := app.secretStore.Delete(ctx, credentialRef(key)); err != nil {
				return err
			}
			if err := app.stateRepo.Delete(ctx, key); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}

	tenant.register(cmd)

	return cmd
}

type tenantFlags struct {
	userID    string
	repoOwner string
	repoName  string
}

func (f *tenantFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "", "Caller user identifier")
	cmd.Flags().StringVar(&f.repoOwner, "owner", "", "Repository owner")
	cmd.Flags().StringVar(&f.repoName, "repo", "", "Repository name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("repo")
}

func (f *tenantFlags) key() (domain.TenantKey, error) {
	return domain.NewTenantKey(f.userID, f.repoOwner, f.repoName)
}

// waitForAuthorization blocks until the background poll settles the
// session one way or the other.
func (a *app) waitForAuthorization(ctx context.Context, key domain.TenantKey) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		view, err := a.registry.Status(ctx, key)
		if err != nil {
			return err
		}

		switch view.Stage {
		case domain.StageAuthenticated:
			return nil
		case domain.StageDenied:
			return domain.ErrAuthorizationDenied
		case domain.StageExpired:
			return domain.ErrAuthorizationExpired
		}
	}
}

// persistSession stores the credential in the secret store and the
// non-secret session metadata in the state file.
func (a *app) persistSession(ctx context.Context, key domain.TenantKey) error {
	credential, err := a.registry.Credential(ctx, key)
	if err != nil {
		return err
	}
	view, err := a.registry.Status(ctx, key)
	if err != nil {
		return err
	}

	ref := credentialRef(key)
	if err := a.secretStore.Put(ctx, ref, credential.Token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	return a.stateRepo.Save(ctx, domain.SessionState{
		Tenant:        key,
		User:          view.User,
		Repository:    view.Repository,
		CredentialRef: ref,
		ObtainedAt:    credential.ObtainedAt,
	})
}

func credentialRef(key domain.TenantKey) string {
	return fmt.Sprintf("github/%s_%s_%s", key.UserID, key.RepoOwner, key.RepoName)
}
