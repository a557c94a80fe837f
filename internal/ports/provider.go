package ports

import (
	"context"
	"time"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

// DeviceAuthorization is the provider's response to a device-code
// request.
type DeviceAuthorization struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Interval        time.Duration
	ExpiresIn       time.Duration
}

type DevicePollStatus string

const (
	// PollPending means the user has not finished authorizing yet.
	PollPending DevicePollStatus = "pending"
	// PollAuthorized means a credential was issued.
	PollAuthorized DevicePollStatus = "authorized"
	// PollDenied means the user refused the authorization.
	PollDenied DevicePollStatus = "denied"
	// PollExpired means the provider reported the device code expired.
	PollExpired DevicePollStatus = "expired"
)

// DevicePollResult is the outcome of a single token poll. NextInterval
// is non-zero when the provider directs a different polling cadence
// (slow_down).
type DevicePollResult struct {
	Status       DevicePollStatus
	Token        string
	NextInterval time.Duration
}

// DeviceAuthProvider is the identity-provider side of the device
// authorization grant. Implementations make one network call per method.
type DeviceAuthProvider interface {
	StartDeviceAuthorization(ctx context.Context) (DeviceAuthorization, error)
	PollDeviceToken(ctx context.Context, deviceCode string) (DevicePollResult, error)
	FetchUser(ctx context.Context, token string) (domain.UserInfo, error)
}
