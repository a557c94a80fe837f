package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

const (
	deviceCodeGrantType   = "urn:ietf:params:oauth:grant-type:device_code"
	maxOAuthResponseBytes = 1 << 20

	defaultDeviceCodeURL = "https://github.com/login/device/code"
	defaultTokenURL      = "https://github.com/login/oauth/access_token"
	defaultAPIBaseURL    = "https://api.github.com"
	defaultScopes        = "repo user"
)

// GitHubProvider implements the device-authorization exchange against
// GitHub. One network call per method; the polling cadence is the
// caller's responsibility.
type GitHubProvider struct {
	ClientID       string
	DeviceCodeURL  string
	TokenURL       string
	APIBaseURL     string
	Scopes         string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.DeviceAuthProvider = (*GitHubProvider)(nil)

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Interval         int64  `json:"interval"`
}

func (p *GitHubProvider) StartDeviceAuthorization(ctx context.Context) (ports.DeviceAuthorization, error) {
	if p.ClientID == "" {
		return ports.DeviceAuthorization{}, fmt.Errorf("client id is required: %w", domain.ErrInvalidClient)
	}

	values := url.Values{}
	values.Set("client_id", p.ClientID)
	values.Set("scope", p.scopes())

	resp, err := p.postForm(ctx, p.deviceCodeURL(), values)
	if err != nil {
		return ports.DeviceAuthorization{}, fmt.Errorf("request device code: %w: %s", domain.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return ports.DeviceAuthorization{}, fmt.Errorf("request device code: status %d: %w", resp.StatusCode, domain.ErrInvalidClient)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return ports.DeviceAuthorization{}, fmt.Errorf("request device code: status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var payload deviceCodeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&payload); err != nil {
		return ports.DeviceAuthorization{}, fmt.Errorf("decode device code response: %w", err)
	}
	if payload.DeviceCode == "" || payload.UserCode == "" || payload.VerificationURI == "" {
		return ports.DeviceAuthorization{}, errors.New("device code response missing required fields")
	}

	interval := payload.Interval
	if interval <= 0 {
		interval = 5
	}
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 900
	}

	return ports.DeviceAuthorization{
		DeviceCode:      payload.DeviceCode,
		UserCode:        payload.UserCode,
		VerificationURI: payload.VerificationURI,
		Interval:        time.Duration(interval) * time.Second,
		ExpiresIn:       time.Duration(expiresIn) * time.Second,
	}, nil
}

// PollDeviceToken performs one token poll. GitHub answers 200 for both
// grants and in-band oauth errors, so the body decides the outcome.
func (p *GitHubProvider) PollDeviceToken(ctx context.Context, deviceCode string) (ports.DevicePollResult, error) {
	if deviceCode == "" {
		return ports.DevicePollResult{}, errors.New("device code is required")
	}

	values := url.Values{}
	values.Set("client_id", p.ClientID)
	values.Set("device_code", deviceCode)
	values.Set("grant_type", deviceCodeGrantType)

	resp, err := p.postForm(ctx, p.tokenURL(), values)
	if err != nil {
		return ports.DevicePollResult{}, fmt.Errorf("request token: %w: %s", domain.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&payload); err != nil {
		return ports.DevicePollResult{}, fmt.Errorf("decode token response: %w", err)
	}

	if payload.AccessToken != "" {
		return ports.DevicePollResult{Status: ports.PollAuthorized, Token: payload.AccessToken}, nil
	}

	nextInterval := time.Duration(payload.Interval) * time.Second
	switch payload.Error {
	case "authorization_pending":
		return ports.DevicePollResult{Status: ports.PollPending, NextInterval: nextInterval}, nil
	case "slow_down":
		if nextInterval <= 0 {
			nextInterval = 5 * time.Second
		}
		nextInterval += 5 * time.Second
		return ports.DevicePollResult{Status: ports.PollPending, NextInterval: nextInterval}, nil
	case "expired_token":
		return ports.DevicePollResult{Status: ports.PollExpired}, nil
	case "access_denied":
		return ports.DevicePollResult{Status: ports.PollDenied}, nil
	case "incorrect_client_credentials", "unsupported_grant_type":
		return ports.DevicePollResult{}, fmt.Errorf("request token: %s: %w", payload.Error, domain.ErrInvalidClient)
	default:
		return ports.DevicePollResult{}, fmt.Errorf("request token: %s: %w", oauthErrorString(resp.StatusCode, payload), domain.ErrProviderUnavailable)
	}
}

func (p *GitHubProvider) postForm(ctx context.Context, endpoint string, values url.Values) (*http.Response, error) {
	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return p.httpClient().Do(req)
}

func (p *GitHubProvider) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

func (p *GitHubProvider) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := p.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, requestTimeout)
}

func (p *GitHubProvider) deviceCodeURL() string {
	if p.DeviceCodeURL != "" {
		return p.DeviceCodeURL
	}
	return defaultDeviceCodeURL
}

func (p *GitHubProvider) tokenURL() string {
	if p.TokenURL != "" {
		return p.TokenURL
	}
	return defaultTokenURL
}

func (p *GitHubProvider) apiBaseURL() string {
	if p.APIBaseURL != "" {
		return p.APIBaseURL
	}
	return defaultAPIBaseURL
}

func (p *GitHubProvider) scopes() string {
	if p.Scopes != "" {
		return p.Scopes
	}
	return defaultScopes
}

func oauthErrorString(statusCode int, payload tokenResponse) string {
	if payload.Error == "" {
		return fmt.Sprintf("status %d", statusCode)
	}
	if payload.ErrorDescription != "" {
		return payload.Error + ": " + payload.ErrorDescription
	}
	return payload.Error
}
