package tracetalk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/tracetalk/tracetalk/llm"
	"github.com/tracetalk/tracetalk/trace"
)

// Turn is one completed question/answer exchange, tagged with the
// provider that produced the answer.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Provider string    `json:"provider"`
	AskedAt  time.Time `json:"asked_at"`
}

// Session drives a multi-turn Q&A conversation about one immutable
// trace, falling back across providers in priority order. It is owned
// by a single control goroutine; one instance exists per instrumented run.
type Session struct {
	sessionID string
	trace     *trace.Trace
	providers []llm.Provider

	// disabled holds providers whose failure was persistent (auth or
	// malformed); they are not re-attempted within this session.
	disabled map[string]error

	turns  []Turn
	hedged bool
	logger *slog.Logger
}

// SessionOption is a functional option for configuring a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger for the session. Default is a
// discard logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHedgedDispatch issues provider requests concurrently as a
// latency-hiding strategy. Ordered provider preference is preserved:
// the success from the highest-priority provider still pending wins,
// and lower-priority in-flight requests are cancelled once a
// higher-priority one succeeds.
func WithHedgedDispatch() SessionOption {
	return func(s *Session) {
		s.hedged = true
	}
}

// NewSession creates a Q&A session over a finalized trace. The provider
// list must be in priority order and non-empty; an empty list is a
// configuration error and no session starts.
func NewSession(tr *trace.Trace, providers []llm.Provider, opts ...SessionOption) (*Session, error) {
	if tr == nil {
		return nil, goerr.New("session requires a trace")
	}
	if len(providers) == 0 {
		return nil, goerr.Wrap(ErrNoProviders, "session cannot start")
	}

	s := &Session{
		sessionID: uuid.New().String(),
		trace:     tr,
		providers: providers,
		disabled:  make(map[string]error),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("session_id", s.sessionID)
	return s, nil
}

// Trace returns the trace this session answers questions about.
func (s *Session) Trace() *trace.Trace {
	return s.trace
}

// Turns returns the completed conversation turns in order.
func (s *Session) Turns() []Turn {
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// Ask renders the trace and conversation into a bounded prompt and
// attempts providers in priority order. Persistent failures (auth,
// malformed) disable the provider for the rest of the session;
// transient ones (rate limit, timeout, unavailable) skip to the next
// provider immediately and are re-tried on the next Ask. If every
// provider fails, Ask returns an ExhaustedError naming each attempt and
// leaves the conversation history unmodified.
func (s *Session) Ask(ctx context.Context, question string) (*llm.Answer, error) {
	prompt := renderPrompt(s.trace, question)
	history := s.historyMessages()

	var answer *llm.Answer
	var err error
	if s.hedged {
		answer, err = s.askHedged(ctx, prompt, history)
	} else {
		answer, err = s.askSequential(ctx, prompt, history)
	}
	if err != nil {
		return nil, err
	}

	s.turns = append(s.turns, Turn{
		Question: question,
		Answer:   answer.Text,
		Provider: answer.Provider,
		AskedAt:  time.Now(),
	})
	return answer, nil
}

func (s *Session) askSequential(ctx context.Context, prompt string, history []llm.Message) (*llm.Answer, error) {
	var attempts []Attempt

	for _, p := range s.providers {
		if reason, off := s.disabled[p.ID()]; off {
			s.logger.Debug("skipping disabled provider", "provider", p.ID(), "reason", reason)
			// Still named in the exhaustion report: the caller learns why
			// every provider was unusable, including sticky failures from
			// earlier questions.
			attempts = append(attempts, Attempt{Provider: p.ID(), Err: reason})
			continue
		}

		answer, err := p.Ask(ctx, prompt, history)
		if err == nil {
			s.logger.Info("provider answered", "provider", p.ID())
			return answer, nil
		}

		// A user-initiated abort is not a provider failure: surface it
		// directly with session state untouched.
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "session aborted")
		}

		s.noteFailure(p.ID(), err)
		attempts = append(attempts, Attempt{Provider: p.ID(), Err: err})
	}

	return nil, &ExhaustedError{Attempts: attempts}
}

// askHedged dispatches to all usable providers at once. Completion
// events are collected until the highest-priority provider that can
// still win has resolved; everything below the winner is cancelled.
func (s *Session) askHedged(ctx context.Context, prompt string, history []llm.Message) (*llm.Answer, error) {
	type slot struct {
		provider llm.Provider
		cancel   context.CancelFunc
		answer   *llm.Answer
		err      error
		done     bool
		skipped  bool
	}
	type result struct {
		idx    int
		answer *llm.Answer
		err    error
	}

	slots := make([]*slot, len(s.providers))
	results := make(chan result, len(s.providers))
	inFlight := 0

	for i, p := range s.providers {
		sl := &slot{provider: p}
		slots[i] = sl
		if reason, off := s.disabled[p.ID()]; off {
			s.logger.Debug("skipping disabled provider", "provider", p.ID(), "reason", reason)
			sl.done = true
			sl.skipped = true
			sl.err = reason
			continue
		}

		callCtx, cancel := context.WithCancel(ctx)
		sl.cancel = cancel
		inFlight++
		go func(idx int, p llm.Provider) {
			answer, err := p.Ask(callCtx, prompt, history)
			results <- result{idx: idx, answer: answer, err: err}
		}(i, p)
	}

	defer func() {
		for _, sl := range slots {
			if sl.cancel != nil {
				sl.cancel()
			}
		}
	}()

	// winner returns the best resolvable outcome: the first slot in
	// priority order that succeeded with no higher-priority slot still
	// pending.
	winner := func() (*slot, bool) {
		for _, sl := range slots {
			if !sl.done {
				return nil, false // a higher-priority provider may still succeed
			}
			if sl.answer != nil {
				return sl, true
			}
		}
		return nil, true // everything resolved, nobody succeeded
	}

	for inFlight > 0 {
		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "session aborted")
		case res := <-results:
			sl := slots[res.idx]
			sl.done = true
			sl.answer = res.answer
			sl.err = res.err
			if res.err != nil && ctx.Err() == nil {
				s.noteFailure(sl.provider.ID(), res.err)
			}
			inFlight--

			if win, resolved := winner(); resolved {
				if win != nil {
					s.logger.Info("provider answered", "provider", win.provider.ID(), "hedged", true)
					return win.answer, nil
				}
				if inFlight == 0 {
					break
				}
			}
		}
	}

	if win, resolved := winner(); resolved && win != nil {
		return win.answer, nil
	}

	var attempts []Attempt
	for _, sl := range slots {
		if sl.err == nil {
			continue
		}
		attempts = append(attempts, Attempt{Provider: sl.provider.ID(), Err: sl.err})
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

// noteFailure disables a provider for the rest of the session when its
// failure is persistent.
func (s *Session) noteFailure(providerID string, err error) {
	s.logger.Warn("provider failed", "provider", providerID, "error", err)

	var perr *llm.Error
	if errors.As(err, &perr) && perr.Persistent() {
		s.disabled[providerID] = err
		s.logger.Info("provider disabled for session", "provider", providerID, "kind", perr.Kind)
	}
}

// historyMessages converts completed turns into provider-neutral
// conversation messages.
func (s *Session) historyMessages() []llm.Message {
	msgs := make([]llm.Message, 0, len(s.turns)*2)
	for _, turn := range s.turns {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: turn.Question},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Answer},
		)
	}
	return msgs
}
