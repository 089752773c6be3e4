package claude

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/tracetalk/tracetalk/llm"
)

// classifyErr maps an Anthropic SDK failure into the shared provider
// error taxonomy. Classification is best effort: anything unrecognized
// is treated as transient unavailability so the session controller can
// fall through to the next provider.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewError(llm.ErrTimeout, ProviderID, err)
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		kind := llm.KindForStatus(apierr.StatusCode)
		perr := llm.NewError(kind, ProviderID, err)
		if kind == llm.ErrRateLimited && apierr.Response != nil {
			if secs, convErr := strconv.Atoi(apierr.Response.Header.Get("Retry-After")); convErr == nil {
				perr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return perr
	}

	return llm.NewError(llm.ErrUnavailable, ProviderID, err)
}
