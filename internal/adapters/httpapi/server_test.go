package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gh-commands-gateway/internal/adapters/fs"
	"github.com/bnema/gh-commands-gateway/internal/application"
	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

type stubProvider struct{}

func (stubProvider) StartDeviceAuthorization(context.Context) (ports.DeviceAuthorization, error) {
	return ports.DeviceAuthorization{
		DeviceCode:      "dc-test",
		UserCode:        "ABCD-1234",
		VerificationURI: "https://github.com/login/device",
		Interval:        time.Millisecond,
		ExpiresIn:       15 * time.Minute,
	}, nil
}

func (stubProvider) PollDeviceToken(context.Context, string) (ports.DevicePollResult, error) {
	return ports.DevicePollResult{Status: ports.PollAuthorized, Token: "gho_test"}, nil
}

func (stubProvider) FetchUser(context.Context, string) (domain.UserInfo, error) {
	return domain.UserInfo{Login: "octocat", Name: "The Octocat", Email: "octocat@example.com"}, nil
}

type stubGitOps struct{}

func (stubGitOps) Pull(context.Context) (ports.OpResult, error) {
	return ports.OpResult{Message: "pull completed"}, nil
}

func (stubGitOps) Commit(context.Context, string) (ports.OpResult, error) {
	return ports.OpResult{Message: "commit created: abcd1234"}, nil
}

func (stubGitOps) Push(context.Context) (ports.OpResult, error) {
	return ports.OpResult{Message: "push completed"}, nil
}

func (stubGitOps) CreateBranch(context.Context, string) (ports.OpResult, error) {
	return ports.OpResult{Message: "branch created"}, nil
}

func (stubGitOps) SwitchBranch(context.Context, string) (ports.OpResult, error) {
	return ports.OpResult{Message: "switched"}, nil
}

type stubCollaborators struct {
	memFs afero.Fs
}

func (c *stubCollaborators) CloneRepository(_ context.Context, repo domain.RepositoryInfo, _ domain.Credential, _ domain.UserInfo) (string, error) {
	return "/workspaces/" + repo.Owner + "/" + repo.Name, nil
}

func (c *stubCollaborators) ReleaseWorkingCopy(string) error { return nil }

func (c *stubCollaborators) FileOps(string) ports.FileOps { return fs.NewOpsFromFs(c.memFs) }

func (c *stubCollaborators) GitOps(string, domain.Credential, domain.RepositoryInfo) ports.GitOps {
	return stubGitOps{}
}

type testAPI struct {
	registry *application.Registry
	server   *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	flow := application.NewDeviceFlow(stubProvider{}, nil)
	registry := application.NewRegistry(flow, &stubCollaborators{memFs: afero.NewMemMapFs()}, nil, application.RegistryConfig{})
	t.Cleanup(func() { registry.Close(context.Background()) })

	server := httptest.NewServer(NewServer(registry, application.NewGateway(registry), nil).Handler())
	t.Cleanup(server.Close)

	return &testAPI{registry: registry, server: server}
}

func (a *testAPI) postJSON(t *testing.T, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := a.server.Client().Post(a.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (a *testAPI) getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := a.server.Client().Get(a.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func tenantBody() map[string]any {
	return map[string]any{
		"user_id":    "user-1",
		"repo_owner": "octocat",
		"repo_name":  "hello-world",
	}
}

func TestAuthStartIssuesCodes(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.postJSON(t, "/auth/start", tenantBody())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["session_id"])
	assert.Equal(t, "ABCD-1234", body["user_code"])
	assert.Equal(t, "https://github.com/login/device", body["verification_uri"])
	assert.Greater(t, body["expires_in"], float64(0))
}

func TestAuthStartMissingParameters(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.postJSON(t, "/auth/start", map[string]any{"repo_owner": "octocat"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestAuthStatusTracksAuthentication(t *testing.T) {
	api := newTestAPI(t)

	_, started := api.postJSON(t, "/auth/start", tenantBody())
	sessionID := started["session_id"].(string)

	require.Eventually(t, func() bool {
		_, status := api.getJSON(t, "/auth/status/"+sessionID)
		return status["status"] == "authenticated"
	}, 2*time.Second, 5*time.Millisecond)

	_, status := api.getJSON(t, "/auth/status/"+sessionID)
	user := status["user"].(map[string]any)
	assert.Equal(t, "octocat", user["login"])
}

func TestAuthStatusUnknownSession(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.getJSON(t, "/auth/status/nope")

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestExecuteWithoutSession(t *testing.T) {
	api := newTestAPI(t)

	payload := tenantBody()
	payload["commands"] = []map[string]any{{"step": 1, "command": "pull"}}

	resp, body := api.postJSON(t, "/commands/execute", payload)

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestExecuteMissingCommands(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.postJSON(t, "/commands/execute", tenantBody())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecuteBatch(t *testing.T) {
	api := newTestAPI(t)

	key, err := domain.NewTenantKey("user-1", "octocat", "hello-world")
	require.NoError(t, err)
	require.NoError(t, api.registry.Restore(context.Background(), domain.SessionState{
		Tenant: key,
		User:   domain.UserInfo{Login: "octocat"},
	}, "gho_test"))

	payload := tenantBody()
	payload["commands"] = []map[string]any{
		{"step": 2, "command": "commit", "content": "dXBkYXRl"},
		{"step": 1, "command": "create.file", "path": "notes.txt", "content": "aGVsbG8="},
	}

	resp, body := api.postJSON(t, "/commands/execute", payload)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["total_commands"])
	assert.Equal(t, float64(2), body["successful_commands"])

	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, float64(1), first["step"])
	assert.Equal(t, "create.file", first["command"])
}

func TestExecuteReportsStepFailures(t *testing.T) {
	api := newTestAPI(t)

	key, err := domain.NewTenantKey("user-1", "octocat", "hello-world")
	require.NoError(t, err)
	require.NoError(t, api.registry.Restore(context.Background(), domain.SessionState{Tenant: key}, "gho_test"))

	payload := tenantBody()
	payload["commands"] = []map[string]any{
		{"step": 1, "command": "create.file"}, // missing path
		{"step": 2, "command": "pull"},
	}

	resp, body := api.postJSON(t, "/commands/execute", payload)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(1), body["failed_commands"])
	assert.Equal(t, float64(1), body["successful_commands"])
}

func TestLogoutEvictsSession(t *testing.T) {
	api := newTestAPI(t)

	api.postJSON(t, "/auth/start", tenantBody())

	resp, body := api.postJSON(t, "/auth/logout", tenantBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	_, health := api.getJSON(t, "/health")
	assert.Equal(t, float64(0), health["active_sessions"])
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.getJSON(t, "/health")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotZero(t, body["timestamp"])
}
