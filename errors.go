package tracetalk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoProviders reports a session started without any configured
	// provider. This is fatal at session construction.
	ErrNoProviders = errors.New("no provider configured")

	// ErrSessionExhausted reports that every configured provider failed
	// for one question. The session survives; the user may re-ask.
	ErrSessionExhausted = errors.New("all providers failed")

	// ErrInvalidConfig reports an unusable provider configuration.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)

// Attempt records one failed provider try within a single Ask call.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when all providers failed for one
// question. It reports which providers were tried and why each failed,
// never a bare generic failure.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder
	sb.WriteString("all providers failed:")
	for _, a := range e.Attempts {
		fmt.Fprintf(&sb, " [%s: %v]", a.Provider, a.Err)
	}
	return sb.String()
}

// Is lets errors.Is(err, ErrSessionExhausted) match.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrSessionExhausted
}
