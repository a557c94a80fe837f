package application

import (
	"time"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

// SessionView is the registry's public read model. Device codes never
// appear here; the user code is visible only while the session is
// PENDING.
type SessionView struct {
	SessionID       string
	Stage           domain.SessionStage
	UserCode        string
	VerificationURI string
	ExpiresAt       time.Time
	User            domain.UserInfo
	Repository      domain.RepositoryInfo
}

func viewOf(session *domain.Session) SessionView {
	view := SessionView{
		SessionID:  session.ID,
		Stage:      session.Stage,
		ExpiresAt:  session.ExpiresAt,
		Repository: session.Repository,
	}
	switch session.Stage {
	case domain.StagePending:
		view.UserCode = session.UserCode
		view.VerificationURI = session.VerificationURI
	case domain.StageAuthenticated:
		view.User = session.User
	}
	return view
}
