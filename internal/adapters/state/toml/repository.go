// Package toml persists standalone session state as a TOML file under
// the user's config directory. Writes go through a temp file and rename
// so a crashed process never leaves a half-written state file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

const (
	configName        = "config"
	configType        = "toml"
	sessionsPathKey   = "sessions.path"
	sessionsFileMode  = 0o600
	sessionsDirMode   = 0o700
	sessionsConfigDir = ".ghg"
	sessionsFile      = "sessions.toml"
	tempFilePattern   = ".sessions-*.toml.tmp"
)

type Repository struct {
	sessionsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SessionStateRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, sessionsConfigDir, sessionsFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, sessionsConfigDir))
	cfg.SetDefault(sessionsPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	sessionsPath := cfg.GetString(sessionsPathKey)
	if sessionsPath == "" {
		return nil, errors.New("sessions path is empty")
	}
	sessionsPath, err = normalizeSessionsPath(sessionsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{sessionsPath: sessionsPath, mu: lockForPath(sessionsPath)}, nil
}

// NewRepositoryAtPath bypasses config resolution. Used by tests and by
// callers that already resolved where state should live.
func NewRepositoryAtPath(path string) (*Repository, error) {
	normalized, err := normalizeSessionsPath(path)
	if err != nil {
		return nil, err
	}
	return &Repository{sessionsPath: normalized, mu: lockForPath(normalized)}, nil
}

func (r *Repository) Get(ctx context.Context, key domain.TenantKey) (domain.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionState{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.SessionState{}, err
	}

	for _, entry := range file.Sessions {
		if matchesKey(entry, key) {
			return fromSchema(entry), nil
		}
	}

	return domain.SessionState{}, domain.ErrSessionNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	states := make([]domain.SessionState, 0, len(file.Sessions))
	for _, entry := range file.Sessions {
		states = append(states, fromSchema(entry))
	}

	return states, nil
}

func (r *Repository) Save(ctx context.Context, state domain.SessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	file.applyDefaults()

	encoded := toSchema(state)
	updated := false
	for i := range file.Sessions {
		if matchesKey(file.Sessions[i], state.Tenant) {
			file.Sessions[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Sessions = append(file.Sessions, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) Delete(ctx context.Context, key domain.TenantKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	file.applyDefaults()

	kept := file.Sessions[:0]
	for _, entry := range file.Sessions {
		if !matchesKey(entry, key) {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(file.Sessions) {
		return nil
	}
	file.Sessions = kept

	return r.writeSchema(file)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.sessionsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read sessions file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode sessions file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.sessionsPath), sessionsDirMode); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode sessions file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.sessionsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp sessions file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp sessions file: %w", err)
	}

	if err := tempFile.Chmod(sessionsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp sessions file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp sessions file: %w", err)
	}

	if err := os.Rename(tempName, r.sessionsPath); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.sessionsPath, sessionsFileMode); err != nil {
		return fmt.Errorf("chmod sessions file: %w", err)
	}

	return nil
}

func matchesKey(entry sessionSchema, key domain.TenantKey) bool {
	return entry.UserID == key.UserID && entry.RepoOwner == key.RepoOwner && entry.RepoName == key.RepoName
}

func normalizeSessionsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve sessions path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(state domain.SessionState) sessionSchema {
	return sessionSchema{
		UserID:    state.Tenant.UserID,
		RepoOwner: state.Tenant.RepoOwner,
		RepoName:  state.Tenant.RepoName,
		User: userSchema{
			Login: state.User.Login,
			Name:  state.User.Name,
			Email: state.User.Email,
			ID:    state.User.ID,
		},
		Repository: repositorySchema{
			Owner:    state.Repository.Owner,
			Name:     state.Repository.Name,
			FullName: state.Repository.FullName,
			URL:      state.Repository.URL,
		},
		CredentialRef: state.CredentialRef,
		ObtainedAt:    formatTime(state.ObtainedAt),
	}
}

func fromSchema(entry sessionSchema) domain.SessionState {
	return domain.SessionState{
		Tenant: domain.TenantKey{
			UserID:    entry.UserID,
			RepoOwner: entry.RepoOwner,
			RepoName:  entry.RepoName,
		},
		User: domain.UserInfo{
			Login: entry.User.Login,
			Name:  entry.User.Name,
			Email: entry.User.Email,
			ID:    entry.User.ID,
		},
		Repository: domain.RepositoryInfo{
			Owner:    entry.Repository.Owner,
			Name:     entry.Repository.Name,
			FullName: entry.Repository.FullName,
			URL:      entry.Repository.URL,
		},
		CredentialRef: entry.CredentialRef,
		ObtainedAt:    parseTime(entry.ObtainedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
