// Package httpapi exposes the session registry and command gateway over
// HTTP. The wire shapes mirror what automation clients already send:
// tenant identifiers in the body, per-step results inline in the batch
// response.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pkt.systems/pslog"

	"github.com/bnema/gh-commands-gateway/internal/application"
	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

const maxRequestBytes = 4 << 20

type Server struct {
	registry *application.Registry
	gateway  *application.Gateway
	clock    ports.Clock
}

func NewServer(registry *application.Registry, gateway *application.Gateway, clock ports.Clock) *Server {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Server{registry: registry, gateway: gateway, clock: clock}
}

// Handler builds the route table. Method matching is part of the
// pattern, so a wrong verb gets 405 without extra code.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/start", s.handleAuthStart)
	mux.HandleFunc("GET /auth/status/{session_id}", s.handleAuthStatus)
	mux.HandleFunc("POST /commands/execute", s.handleExecute)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		next.ServeHTTP(w, r)
		pslog.Ctx(r.Context()).Debug("http request",
			"method", r.Method, "path", r.URL.Path, "duration", s.clock.Now().Sub(start))
	})
}

type tenantRequest struct {
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
	UserID    string `json:"user_id"`
}

func (t tenantRequest) key() (domain.TenantKey, error) {
	return domain.NewTenantKey(t.UserID, t.RepoOwner, t.RepoName)
}

type authStartResponse struct {
	Success         bool   `json:"success"`
	SessionID       string `json:"session_id"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Status          string `json:"status"`
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key, err := req.key()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := s.registry.GetOrCreate(r.Context(), key)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	expiresIn := int64(0)
	if !view.ExpiresAt.IsZero() {
		if remaining := view.ExpiresAt.Sub(s.clock.Now()); remaining > 0 {
			expiresIn = int64(remaining / time.Second)
		}
	}
	writeJSON(w, http.StatusOK, authStartResponse{
		Success:         true,
		SessionID:       view.SessionID,
		UserCode:        view.UserCode,
		VerificationURI: view.VerificationURI,
		ExpiresIn:       expiresIn,
		Status:          string(view.Stage),
	})
}

type userPayload struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type repositoryPayload struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type authStatusResponse struct {
	Success         bool               `json:"success"`
	Status          string             `json:"status"`
	UserCode        string             `json:"user_code,omitempty"`
	VerificationURI string             `json:"verification_uri,omitempty"`
	User            *userPayload       `json:"user,omitempty"`
	Repository      *repositoryPayload `json:"repository,omitempty"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	view, err := s.registry.StatusByID(r.Context(), sessionID)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	resp := authStatusResponse{
		Success:         true,
		Status:          string(view.Stage),
		UserCode:        view.UserCode,
		VerificationURI: view.VerificationURI,
	}
	if view.Stage == domain.StageAuthenticated {
		resp.User = &userPayload{Login: view.User.Login, Name: view.User.Name, Email: view.User.Email}
		if view.Repository.FullName != "" {
			resp.Repository = &repositoryPayload{
				Owner:    view.Repository.Owner,
				Name:     view.Repository.Name,
				FullName: view.Repository.FullName,
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type executeRequest struct {
	tenantRequest
	Commands []domain.CommandRecord `json:"commands"`
}

type executeResponse struct {
	// Success is a caller convenience derived from the per-step counts;
	// the per-step results remain authoritative.
	Success bool `json:"success"`
	domain.BatchReport
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key, err := req.key()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Commands) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("commands are required"))
		return
	}

	report, err := s.gateway.Execute(r.Context(), key, req.Commands)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Success:     report.FailedCommands == 0,
		BatchReport: report,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key, err := req.key()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.registry.Evict(r.Context(), key); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "logout completed",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"active_sessions": s.registry.Len(),
		"timestamp":       s.clock.Now().Unix(),
	})
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// writeFailure maps domain errors to HTTP status codes. Anything not in
// the taxonomy is an internal error.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMissingParameter), errors.Is(err, domain.ErrDecodeError),
		errors.Is(err, domain.ErrUnknownCommand):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrNotInitialized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrentBatchRejected):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrProviderUnavailable), errors.Is(err, domain.ErrInvalidClient):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		pslog.Ctx(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
