package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/gh-commands-gateway/internal/adapters/auth"
	gitadapter "github.com/bnema/gh-commands-gateway/internal/adapters/git"
	chainstore "github.com/bnema/gh-commands-gateway/internal/adapters/secrets/chain"
	tomlstate "github.com/bnema/gh-commands-gateway/internal/adapters/state/toml"
	"github.com/bnema/gh-commands-gateway/internal/application"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

// The public client id for the device flow. Not a secret; overridable
// for GitHub Enterprise or a different app registration.
const defaultClientID = "Iv1.b507a08c87ecfe98"

type app struct {
	provider    *auth.GitHubProvider
	workspace   *gitadapter.Workspace
	registry    *application.Registry
	gateway     *application.Gateway
	stateRepo   *tomlstate.Repository
	secretStore ports.SecretStore
	clock       ports.Clock

	listenAddr    string
	sweepInterval time.Duration
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	provider := &auth.GitHubProvider{
		ClientID: envOrDefault("GHG_CLIENT_ID", defaultClientID),
	}
	if oauthBase := os.Getenv("GHG_OAUTH_BASE_URL"); oauthBase != "" {
		provider.DeviceCodeURL = oauthBase + "/login/device/code"
		provider.TokenURL = oauthBase + "/login/oauth/access_token"
	}
	if apiBase := os.Getenv("GHG_API_BASE_URL"); apiBase != "" {
		provider.APIBaseURL = apiBase
	}

	workspaceOpts := []gitadapter.WorkspaceOption{}
	if remoteBase := os.Getenv("GHG_REMOTE_BASE_URL"); remoteBase != "" {
		workspaceOpts = append(workspaceOpts, gitadapter.WithRemoteBase(remoteBase))
	}
	workspace, err := gitadapter.NewWorkspace(os.Getenv("GHG_WORKSPACE_DIR"), workspaceOpts...)
	if err != nil {
		return nil, fmt.Errorf("wire workspace: %w", err)
	}

	stateRepo, err := tomlstate.NewRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire session state repository: %w", err)
	}

	secretStore, err := chainstore.NewPassFirstWithFileFallback(filepath.Join(homeDir, ".ghg", "secrets"))
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	clock := ports.SystemClock{}
	flow := application.NewDeviceFlow(provider, clock)
	registry := application.NewRegistry(flow, workspace, clock, application.RegistryConfig{
		IdleTimeout: durationOrDefault("GHG_IDLE_TIMEOUT", time.Hour),
	})

	return &app{
		provider:      provider,
		workspace:     workspace,
		registry:      registry,
		gateway:       application.NewGateway(registry),
		stateRepo:     stateRepo,
		secretStore:   secretStore,
		clock:         clock,
		listenAddr:    envOrDefault("GHG_LISTEN", "127.0.0.1:3000"),
		sweepInterval: durationOrDefault("GHG_SWEEP_INTERVAL", time.Minute),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
