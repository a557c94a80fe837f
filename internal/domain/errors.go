package domain

import "errors"

var (
	ErrProviderUnavailable     = errors.New("identity provider unavailable")
	ErrInvalidClient           = errors.New("client credentials rejected by provider")
	ErrAuthorizationDenied     = errors.New("authorization denied by user")
	ErrAuthorizationExpired    = errors.New("device authorization expired")
	ErrNotAuthenticated        = errors.New("session not authenticated")
	ErrNotInitialized          = errors.New("session not initialized")
	ErrSessionNotFound         = errors.New("session not found")
	ErrUnknownCommand          = errors.New("unknown command")
	ErrMissingParameter        = errors.New("missing required parameter")
	ErrDecodeError             = errors.New("content decode failed")
	ErrCollaboratorError       = errors.New("collaborator operation failed")
	ErrConcurrentBatchRejected = errors.New("concurrent batch rejected")
)
