package llm

import (
	"context"
)

// Provider is the uniform capability interface implemented once per AI
// backend. An Ask call either returns an Answer or fails once with an
// *Error; providers never retry internally. Retry and fallback policy
// belongs to the session controller.
type Provider interface {
	// ID returns the stable provider identity used for configuration
	// and fallback bookkeeping (e.g. "claude", "gpt", "gemini").
	ID() string

	// Ask sends the rendered prompt together with the prior
	// conversation turns and returns the backend's answer.
	Ask(ctx context.Context, prompt string, history []Message) (*Answer, error)
}
