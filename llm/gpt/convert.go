package gpt

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/tracetalk/tracetalk/llm"
)

// classifyErr maps a go-openai failure into the shared provider error
// taxonomy.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewError(llm.ErrTimeout, ProviderID, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewError(llm.KindForStatus(apiErr.HTTPStatusCode), ProviderID, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewError(llm.KindForStatus(reqErr.HTTPStatusCode), ProviderID, err)
	}

	return llm.NewError(llm.ErrUnavailable, ProviderID, err)
}
