package application

import (
	"context"
	"fmt"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

// DeviceFlow drives the device-authorization exchange for one session at
// a time. It owns the stage transitions; the registry owns the sessions.
//
// Stages only move PENDING -> AUTHENTICATED | DENIED | EXPIRED. Denied
// and expired are terminal.
type DeviceFlow struct {
	provider ports.DeviceAuthProvider
	clock    ports.Clock
}

func NewDeviceFlow(provider ports.DeviceAuthProvider, clock ports.Clock) *DeviceFlow {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &DeviceFlow{provider: provider, clock: clock}
}

// Start requests device and user codes and moves the session to PENDING.
func (f *DeviceFlow) Start(ctx context.Context, session *domain.Session) error {
	auth, err := f.provider.StartDeviceAuthorization(ctx)
	if err != nil {
		return fmt.Errorf("start device authorization: %w", err)
	}

	session.Stage = domain.StagePending
	session.DeviceCode = auth.DeviceCode
	session.UserCode = auth.UserCode
	session.VerificationURI = auth.VerificationURI
	session.PollInterval = auth.Interval
	session.ExpiresAt = f.clock.Now().Add(auth.ExpiresIn)
	return nil
}

// PollOnce performs a single authorization poll. Past the deadline it
// reports EXPIRED without touching the network. On slow_down the
// provider-directed interval replaces the session's.
func (f *DeviceFlow) PollOnce(ctx context.Context, session *domain.Session) error {
	if session.Stage.Terminal() {
		return nil
	}
	if session.Stage != domain.StagePending {
		return fmt.Errorf("poll in stage %q: %w", session.Stage, domain.ErrNotAuthenticated)
	}
	if !f.clock.Now().Before(session.ExpiresAt) {
		session.Stage = domain.StageExpired
		return nil
	}

	result, err := f.provider.PollDeviceToken(ctx, session.DeviceCode)
	if err != nil {
		return fmt.Errorf("poll device token: %w", err)
	}

	if result.NextInterval > session.PollInterval {
		session.PollInterval = result.NextInterval
	}

	switch result.Status {
	case ports.PollPending:
		return nil
	case ports.PollAuthorized:
		user, err := f.provider.FetchUser(ctx, result.Token)
		if err != nil {
			return fmt.Errorf("fetch authorized user: %w", err)
		}
		session.Credential = domain.Credential{Token: result.Token, ObtainedAt: f.clock.Now()}
		session.User = user
		session.Stage = domain.StageAuthenticated
		// Consumed codes never leave the server again.
		session.DeviceCode = ""
		session.UserCode = ""
		return nil
	case ports.PollDenied:
		session.Stage = domain.StageDenied
		return nil
	case ports.PollExpired:
		session.Stage = domain.StageExpired
		return nil
	default:
		return fmt.Errorf("unexpected poll status %q: %w", result.Status, domain.ErrProviderUnavailable)
	}
}
