package domain

import (
	"fmt"
	"strings"
	"time"
)

// TenantKey isolates sessions per user and per repository. It is derived
// from caller-supplied identifiers and stays stable for the session's
// lifetime.
type TenantKey struct {
	UserID    string
	RepoOwner string
	RepoName  string
}

func NewTenantKey(userID, repoOwner, repoName string) (TenantKey, error) {
	key := TenantKey{
		UserID:    strings.TrimSpace(userID),
		RepoOwner: strings.TrimSpace(repoOwner),
		RepoName:  strings.TrimSpace(repoName),
	}
	if key.UserID == "" || key.RepoOwner == "" || key.RepoName == "" {
		return TenantKey{}, fmt.Errorf("tenant key requires user_id, repo_owner and repo_name")
	}
	return key, nil
}

func (k TenantKey) RepoFullName() string {
	return k.RepoOwner + "/" + k.RepoName
}

func (k TenantKey) String() string {
	return k.UserID + "/" + k.RepoOwner + "/" + k.RepoName
}

type SessionStage string

const (
	StagePending       SessionStage = "pending"
	StageAuthenticated SessionStage = "authenticated"
	StageDenied        SessionStage = "denied"
	StageExpired       SessionStage = "expired"
)

// Terminal reports whether no further authorization progress is possible.
// StageAuthenticated persists until eviction and is not terminal in this
// sense.
func (s SessionStage) Terminal() bool {
	return s == StageDenied || s == StageExpired
}

type RepositoryInfo struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	URL      string `json:"url,omitempty"`
}

type UserInfo struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
	ID    int64  `json:"id,omitempty"`
}

// Credential is the opaque bearer token presented to the source-control
// API on each authorized call.
type Credential struct {
	Token      string
	ObtainedAt time.Time
}

func (c Credential) Empty() bool { return c.Token == "" }

// Session tracks one tenant's device-authorization lifecycle and, once
// authenticated, its repository binding. The session registry exclusively
// owns and mutates Session values.
type Session struct {
	ID              string
	Tenant          TenantKey
	Stage           SessionStage
	DeviceCode      string
	UserCode        string
	VerificationURI string
	PollInterval    time.Duration
	ExpiresAt       time.Time
	Credential      Credential
	User            UserInfo
	Repository      RepositoryInfo
	WorkingCopyPath string
	LastActivity    time.Time
}

func (s *Session) Bound() bool {
	return s.Repository.FullName != "" && s.WorkingCopyPath != ""
}
