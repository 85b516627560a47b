package core

import "errors"

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeAuthFailure       = "authentication_failure"
	ErrCodeForbidden         = "forbidden"
	ErrCodeInvalidMessage    = "invalid_message"
	ErrCodePersistence       = "persistence_error"
	ErrCodeSlowConsumer      = "slow_consumer"
	ErrCodeAlreadyRegistered = "already_registered"
	ErrCodeBadRequest        = "bad_request"
)

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrForbidden         = errors.New("not a chat participant")
	ErrAlreadyRegistered = errors.New("connection registered under another identity")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
