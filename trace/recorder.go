package trace

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Option is a functional option for configuring a Recorder.
type Option func(*Recorder)

// WithMaxDepth bounds how deep nested calls are observed. Calls below
// the bound still execute normally; their events are just not recorded.
// Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(r *Recorder) {
		r.maxDepth = depth
	}
}

// WithBudget sets the event budget and value snapshot bound handed to
// the per-stream builders.
func WithBudget(maxEvents, maxValueLen int) Option {
	return func(r *Recorder) {
		r.maxEvents = maxEvents
		r.maxValueLen = maxValueLen
	}
}

// WithLogger sets the logger for the recorder. Default is a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// Recorder observes the execution of instrumented code and emits an
// ordered event stream per goroutine. It runs synchronously inline with
// the instrumented program and must never alter its control flow or
// data: a traced run and an untraced run produce identical results.
//
// Instrumented code threads the recorder through context:
//
//	ctx = rec.EnterCall(ctx, "fib", trace.Loc("fib.go", 10))
//	rec.SetVar(ctx, "n", n)
//	...
//	rec.ExitCall(ctx, result)
//
// Calling EnterCall on a context without a stream starts a new stream,
// so goroutines spawned by the traced program each get their own
// independent call tree. This holds even when a goroutine inherits the
// traced context (the usual Go idiom): a stream is owned by the
// goroutine that opened it, and any other goroutine touching that
// context gets a fresh stream on EnterCall and no-ops otherwise.
type Recorder struct {
	mu      sync.Mutex
	streams []*stream

	maxDepth    int
	maxEvents   int
	maxValueLen int
	logger      *slog.Logger

	finished bool
}

// New creates a new Recorder with the given options.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		maxEvents:   DefaultMaxEvents,
		maxValueLen: DefaultMaxValueLen,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stream is one goroutine's event feed into its own builder. It is
// owned by the goroutine that opened it; no locking beyond the
// recorder's stream registry is needed.
type stream struct {
	builder *Builder

	// gid identifies the owning goroutine. A context carrying this
	// stream is inert on any other goroutine.
	gid uint64

	seq   uint64
	depth int

	// suppressed counts call nesting beyond the max-depth bound.
	suppressed int

	// frames tracks the last observed snapshot per variable per open
	// frame, so exactly one variable_changed event is emitted per
	// actual change.
	frames []map[string]string

	// err is the first build error. Once set, the stream is dead and
	// further events are dropped; the error surfaces from Finish.
	err error
}

type streamKey struct{}

// streamFrom retrieves the current goroutine's stream from the context.
// A stream opened by a different goroutine is invisible here, so an
// inherited traced context can never race on the parent's stream.
func streamFrom(ctx context.Context) *stream {
	s, _ := ctx.Value(streamKey{}).(*stream)
	if s == nil || s.gid != goroutineID() {
		return nil
	}
	return s
}

// goroutineID parses the current goroutine's id from its stack header
// ("goroutine N [running]:"). There is no runtime API for this.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := buf[len("goroutine "):n]
	for i, c := range header {
		if c == ' ' {
			header = header[:i]
			break
		}
	}
	id, _ := strconv.ParseUint(string(header), 10, 64)
	return id
}

func (s *stream) push(b *Builder, ev *Event) {
	if s.err != nil {
		return
	}
	if err := b.Push(ev); err != nil {
		s.err = err
	}
}

func (s *stream) next(kind EventKind, loc Location) *Event {
	s.seq++
	return &Event{
		Seq:  s.seq,
		Kind: kind,
		Loc:  loc,
		At:   time.Now(),
	}
}

// EnterCall records a call boundary and returns a context carrying the
// new frame. When the context has no stream yet, a new per-goroutine
// stream (and call tree root) is started.
func (r *Recorder) EnterCall(ctx context.Context, name string, loc Location) context.Context {
	s := streamFrom(ctx)
	if s == nil {
		s = &stream{
			gid: goroutineID(),
			builder: NewBuilder(
				WithMaxEvents(r.maxEvents),
				WithMaxValueLen(r.maxValueLen),
				WithBuilderLogger(r.logger),
			),
		}
		r.mu.Lock()
		r.streams = append(r.streams, s)
		r.mu.Unlock()
		ctx = context.WithValue(ctx, streamKey{}, s)
	}

	if s.suppressed > 0 || (r.maxDepth > 0 && s.depth >= r.maxDepth) {
		s.suppressed++
		return ctx
	}

	ev := s.next(EventCallEntered, loc)
	ev.Call = &CallData{Name: name}
	s.push(s.builder, ev)
	s.depth++
	s.frames = append(s.frames, make(map[string]string))
	return ctx
}

// ExitCall records a normal return from the current frame. The return
// value is snapshotted; pass nil for functions without results.
func (r *Recorder) ExitCall(ctx context.Context, ret any) {
	r.exit(ctx, &CallData{Return: Snapshot(ret, r.maxValueLen)})
}

// ExitRaised records the current frame exiting via a raised exception
// (an error or a recovered panic value).
func (r *Recorder) ExitRaised(ctx context.Context, v any) {
	r.exit(ctx, &CallData{Exc: snapshotErr(v, r.maxValueLen)})
}

func (r *Recorder) exit(ctx context.Context, data *CallData) {
	s := streamFrom(ctx)
	if s == nil {
		return
	}
	if s.suppressed > 0 {
		s.suppressed--
		return
	}
	if s.depth == 0 {
		return
	}

	s.depth--
	s.frames = s.frames[:len(s.frames)-1]
	data.Name = s.openName()

	ev := s.next(EventCallReturned, Location{})
	ev.Call = data
	s.push(s.builder, ev)
}

// openName returns the qualified name of the innermost open record.
func (s *stream) openName() string {
	if n := len(s.builder.stack); n > 0 {
		return s.builder.stack[n-1].Name
	}
	return ""
}

// Line records a statement boundary in the current frame.
func (r *Recorder) Line(ctx context.Context, loc Location) {
	s := streamFrom(ctx)
	if s == nil || s.suppressed > 0 || s.depth == 0 {
		return
	}
	s.push(s.builder, s.next(EventLineExecuted, loc))
}

// SetVar records a local variable binding. Exactly one variable_changed
// event is emitted per actual change; re-binding a variable to the
// value it already holds is not recorded. Snapshot failures degrade to
// a placeholder and never abort the instrumented program.
func (r *Recorder) SetVar(ctx context.Context, name string, value any) {
	s := streamFrom(ctx)
	if s == nil || s.suppressed > 0 || s.depth == 0 {
		return
	}

	snap := Snapshot(value, r.maxValueLen)
	frame := s.frames[len(s.frames)-1]
	if prev, ok := frame[name]; ok && prev == snap {
		return
	}
	frame[name] = snap

	ev := s.next(EventVariableChanged, Location{})
	ev.Var = &VarData{Name: name, Value: snap}
	s.push(s.builder, ev)
}

// Raise records an exception observed (and possibly handled) inside the
// current frame without closing it.
func (r *Recorder) Raise(ctx context.Context, v any) {
	s := streamFrom(ctx)
	if s == nil || s.suppressed > 0 || s.depth == 0 {
		return
	}
	ev := s.next(EventExceptionRaised, Location{})
	ev.Exc = snapshotErr(v, r.maxValueLen)
	s.push(s.builder, ev)
}

// Finish seals all streams and returns the Trace for the run. Records
// still open (the host aborted mid-call) are flagged unterminated. If
// any stream hit a build error, Finish reports it and the trace is
// unusable; the instrumented program's own result is unaffected.
func (r *Recorder) Finish() (*Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil, goerr.Wrap(ErrBuild, "recorder already finished")
	}
	r.finished = true

	if len(r.streams) == 0 {
		return nil, goerr.Wrap(ErrBuild, "nothing was recorded")
	}

	var merged *Trace
	for _, s := range r.streams {
		if s.err != nil {
			return nil, s.err
		}
		tr, err := s.builder.Finalize()
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = tr
			continue
		}
		merged.Roots = append(merged.Roots, tr.Roots...)
		merged.EventCount += tr.EventCount
		merged.Truncated = merged.Truncated || tr.Truncated
		merged.Elisions = mergeElisions(merged.Elisions, tr.Elisions)
		if tr.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = tr.StartedAt
		}
		if tr.EndedAt.After(merged.EndedAt) {
			merged.EndedAt = tr.EndedAt
		}
	}

	r.logger.Info("trace finished",
		"trace_id", merged.TraceID,
		"roots", len(merged.Roots),
		"events", merged.EventCount,
		"truncated", merged.Truncated)

	return merged, nil
}

func mergeElisions(a, b []ElisionStage) []ElisionStage {
	for _, s := range b {
		found := false
		for _, t := range a {
			if s == t {
				found = true
				break
			}
		}
		if !found {
			a = append(a, s)
		}
	}
	return a
}

// Observe wraps one function call in a recorded frame. The call's
// return value is recorded on normal return; a panic is recorded as a
// raised exception and then re-raised unchanged, so traced and untraced
// runs behave identically.
func Observe[T any](ctx context.Context, r *Recorder, name string, loc Location, fn func(ctx context.Context) T) T {
	ctx = r.EnterCall(ctx, name, loc)

	done := false
	defer func() {
		if done {
			return
		}
		// Exiting via panic: record and let it propagate.
		if v := recover(); v != nil {
			r.Raise(ctx, v)
			r.ExitRaised(ctx, v)
			panic(v)
		}
	}()

	ret := fn(ctx)
	done = true
	r.ExitCall(ctx, ret)
	return ret
}
