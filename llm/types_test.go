package llm_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/tracetalk/tracetalk/llm"
)

func TestKindForStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   llm.ErrorKind
	}{
		{http.StatusUnauthorized, llm.ErrAuth},
		{http.StatusForbidden, llm.ErrAuth},
		{http.StatusTooManyRequests, llm.ErrRateLimited},
		{http.StatusRequestTimeout, llm.ErrTimeout},
		{http.StatusGatewayTimeout, llm.ErrTimeout},
		{http.StatusBadRequest, llm.ErrMalformed},
		{http.StatusUnprocessableEntity, llm.ErrMalformed},
		{http.StatusInternalServerError, llm.ErrUnavailable},
		{http.StatusBadGateway, llm.ErrUnavailable},
		{http.StatusServiceUnavailable, llm.ErrUnavailable},
		{0, llm.ErrUnavailable},
	}

	for _, tc := range cases {
		gt.Equal(t, llm.KindForStatus(tc.status), tc.kind)
	}
}

func TestErrorPersistent(t *testing.T) {
	gt.B(t, llm.NewError(llm.ErrAuth, "p", nil).Persistent()).True()
	gt.B(t, llm.NewError(llm.ErrMalformed, "p", nil).Persistent()).True()
	gt.B(t, llm.NewError(llm.ErrRateLimited, "p", nil).Persistent()).False()
	gt.B(t, llm.NewError(llm.ErrTimeout, "p", nil).Persistent()).False()
	gt.B(t, llm.NewError(llm.ErrUnavailable, "p", nil).Persistent()).False()
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := llm.NewError(llm.ErrUnavailable, "claude", cause)
	gt.B(t, errors.Is(err, cause)).True()
}

func TestErrorMessage(t *testing.T) {
	err := llm.NewError(llm.ErrRateLimited, "gpt", errors.New("429"))
	err.RetryAfter = 30 * time.Second

	msg := err.Error()
	gt.B(t, strings.Contains(msg, "gpt")).True()
	gt.B(t, strings.Contains(msg, "rate_limited")).True()
	gt.B(t, strings.Contains(msg, "30s")).True()
	gt.B(t, strings.Contains(msg, "429")).True()
}
