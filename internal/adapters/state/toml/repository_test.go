package toml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	config := viper.New()
	config.Set("sessions.path", sessionsPath)

	repo, err := NewRepository(config)
	require.NoError(t, err)
	return repo
}

func testState(userID string) domain.SessionState {
	return domain.SessionState{
		Tenant: domain.TenantKey{UserID: userID, RepoOwner: "octocat", RepoName: "hello-world"},
		User: domain.UserInfo{
			Login: "octocat",
			Name:  "The Octocat",
			Email: "octocat@example.com",
		},
		Repository: domain.RepositoryInfo{
			Owner:    "octocat",
			Name:     "hello-world",
			FullName: "octocat/hello-world",
		},
		CredentialRef: "github/" + userID,
		ObtainedAt:    time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)

	first := testState("user-1")
	second := testState("user-2")

	require.NoError(t, repo.Save(context.Background(), first))
	require.NoError(t, repo.Save(context.Background(), second))

	got, err := repo.Get(context.Background(), first.Tenant)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	states, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.SessionState{first, second}, states)
}

func TestRepositorySaveReplacesSameTenant(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)

	state := testState("user-1")
	require.NoError(t, repo.Save(context.Background(), state))

	state.CredentialRef = "github/user-1-rotated"
	require.NoError(t, repo.Save(context.Background(), state))

	states, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "github/user-1-rotated", states[0].CredentialRef)
}

func TestRepositoryGetMissing(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), domain.TenantKey{UserID: "nobody", RepoOwner: "o", RepoName: "r"})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRepositoryDelete(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)

	state := testState("user-1")
	require.NoError(t, repo.Save(context.Background(), state))
	require.NoError(t, repo.Delete(context.Background(), state.Tenant))

	_, err := repo.Get(context.Background(), state.Tenant)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Deleting again is a no-op.
	require.NoError(t, repo.Delete(context.Background(), state.Tenant))
}

func TestRepositoryFilePermissions(t *testing.T) {
	t.Parallel()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	repo, err := NewRepositoryAtPath(sessionsPath)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), testState("user-1")))

	info, err := os.Stat(sessionsPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRepositoryRejectsNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(sessionsPath, []byte("version = 99\n"), 0o600))

	repo, err := NewRepositoryAtPath(sessionsPath)
	require.NoError(t, err)

	_, err = repo.List(context.Background())
	require.ErrorContains(t, err, "unsupported sessions schema version")
}
