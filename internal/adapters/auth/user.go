package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bnema/gh-commands-gateway/internal/domain"
)

type userResponse struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
	ID    int64  `json:"id"`
}

// FetchUser resolves the authenticated account behind a token. Accounts
// with a private email get the noreply address so commits still attribute.
func (p *GitHubProvider) FetchUser(ctx context.Context, token string) (domain.UserInfo, error) {
	if token == "" {
		return domain.UserInfo{}, fmt.Errorf("token is required: %w", domain.ErrNotAuthenticated)
	}

	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, p.apiBaseURL()+"/user", nil)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("fetch user: %w: %s", domain.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.UserInfo{}, fmt.Errorf("fetch user: status %d: %w", resp.StatusCode, domain.ErrNotAuthenticated)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.UserInfo{}, fmt.Errorf("fetch user: status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var payload userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&payload); err != nil {
		return domain.UserInfo{}, fmt.Errorf("decode user response: %w", err)
	}
	if payload.Login == "" {
		return domain.UserInfo{}, fmt.Errorf("user response missing login")
	}

	user := domain.UserInfo{
		Login: payload.Login,
		Name:  payload.Name,
		Email: payload.Email,
		ID:    payload.ID,
	}
	if user.Name == "" {
		user.Name = user.Login
	}
	if user.Email == "" {
		user.Email = user.Login + "@users.noreply.github.com"
	}
	return user, nil
}
