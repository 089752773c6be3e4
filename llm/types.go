package llm

import (
	"fmt"
	"net/http"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one provider-neutral conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Answer is a backend's response to one question.
type Answer struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// ErrorKind classifies provider failures. The session controller treats
// auth and malformed failures as persistent for the rest of the
// session; everything else is transient and retried on the next question.
type ErrorKind string

const (
	ErrAuth        ErrorKind = "auth"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrTimeout     ErrorKind = "timeout"
	ErrUnavailable ErrorKind = "unavailable"
	ErrMalformed   ErrorKind = "malformed"
)

// Error is the tagged provider failure returned by adapters.
type Error struct {
	Kind     ErrorKind
	Provider string

	// RetryAfter is the backend-suggested wait, set only for
	// rate_limited failures when the backend reported one.
	RetryAfter time.Duration

	cause error
}

// NewError creates a provider error of the given kind wrapping the
// backend's original error.
func NewError(kind ErrorKind, provider string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, cause: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Kind == ErrRateLimited && e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Persistent reports whether the failure should stick for the rest of
// the session: retrying an auth rejection or a malformed exchange
// within the same session cannot succeed.
func (e *Error) Persistent() bool {
	return e.Kind == ErrAuth || e.Kind == ErrMalformed
}

// KindForStatus maps an HTTP status code to an ErrorKind. Adapters use
// it as the shared baseline for classifying backend responses.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrMalformed
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrUnavailable
	}
}
