package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeMessageNotFound = "message_not_found"

	// Call-related error codes
	ErrCodeCallNotFound = "call_not_found"
)

var (
	ErrCallExists        = errors.New("call already exists for this pair")
	ErrInvalidTransition = errors.New("invalid call state transition")
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

// ErrorEvent builds an EventError for the given code.
func ErrorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}
