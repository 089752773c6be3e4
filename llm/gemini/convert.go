package gemini

import (
	"context"
	"errors"

	"google.golang.org/api/googleapi"

	"github.com/tracetalk/tracetalk/llm"
)

// classifyErr maps a Vertex AI failure into the shared provider error
// taxonomy.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewError(llm.ErrTimeout, ProviderID, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return llm.NewError(llm.KindForStatus(gerr.Code), ProviderID, err)
	}

	return llm.NewError(llm.ErrUnavailable, ProviderID, err)
}
