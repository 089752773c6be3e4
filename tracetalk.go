// Package tracetalk records a structured trace of a program's execution
// (call frames, variable changes, control flow, return values) and
// answers natural-language questions about that trace through
// interchangeable LLM backends with priority-ordered fallback.
//
// The trace subpackage captures execution; the llm subpackages adapt
// one backend each; Session ties a finalized trace to a conversation.
package tracetalk

import (
	"context"

	"github.com/tracetalk/tracetalk/llm"
	"github.com/tracetalk/tracetalk/trace"
)

// BeginTrace starts observing an instrumented scope and returns the
// recorder plus the context to thread through the traced code. It is
// the entry point consumed by surrounding CLI/decorator glue.
func BeginTrace(ctx context.Context, name string, loc trace.Location, opts ...trace.Option) (*trace.Recorder, context.Context) {
	rec := trace.New(opts...)
	return rec, rec.EnterCall(ctx, name, loc)
}

// EndTrace closes the scope opened by BeginTrace and finalizes the
// trace. Records left open by an abort are flagged unterminated.
func EndTrace(ctx context.Context, rec *trace.Recorder, ret any) (*trace.Trace, error) {
	rec.ExitCall(ctx, ret)
	return rec.Finish()
}

// NewSessionFromConfig builds providers from a validated configuration
// using the supplied factory and starts a session over the trace. The
// factory receives each spec in priority order together with its
// resolved credential; it lives outside the core so credential storage
// never leaks in.
func NewSessionFromConfig(ctx context.Context, tr *trace.Trace, cfg *Config,
	factory func(ctx context.Context, spec ProviderSpec) (llm.Provider, error),
	opts ...SessionOption,
) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	providers := make([]llm.Provider, 0, len(cfg.Providers))
	for _, spec := range cfg.Sorted() {
		p, err := factory(ctx, spec)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	return NewSession(tr, providers, opts...)
}
