package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Sessions []sessionSchema `toml:"sessions"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported sessions schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	UserID        string           `toml:"user_id"`
	RepoOwner     string           `toml:"repo_owner"`
	RepoName      string           `toml:"repo_name"`
	User          userSchema       `toml:"user"`
	Repository    repositorySchema `toml:"repository,omitempty"`
	CredentialRef string           `toml:"credential_ref"`
	ObtainedAt    string           `toml:"obtained_at,omitempty"`
}

type userSchema struct {
	Login string `toml:"login"`
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
	ID    int64  `toml:"id,omitempty"`
}

type repositorySchema struct {
	Owner    string `toml:"owner,omitempty"`
	Name     string `toml:"name,omitempty"`
	FullName string `toml:"full_name,omitempty"`
	URL      string `toml:"url,omitempty"`
}
