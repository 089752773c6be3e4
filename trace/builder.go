package trace

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultMaxEvents is the default total event budget for one trace.
	DefaultMaxEvents = 10000

	// DefaultMaxValueLen is the default size bound for one value snapshot.
	DefaultMaxValueLen = 512
)

// BuilderOption is a functional option for configuring a Builder.
type BuilderOption func(*Builder)

// WithMaxEvents sets the total event budget. When the budget is
// exceeded the builder marks the trace truncated and elides detail in
// the documented order.
func WithMaxEvents(n int) BuilderOption {
	return func(b *Builder) {
		b.maxEvents = n
	}
}

// WithMaxValueLen sets the size bound for value snapshots. Snapshots
// longer than the bound are clipped on ingest.
func WithMaxValueLen(n int) BuilderOption {
	return func(b *Builder) {
		b.maxValueLen = n
	}
}

// WithBuilderLogger sets the logger for the builder. Default is a
// discard logger.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// Builder consumes one ordered event stream and materializes a bounded
// call record tree. It is a single-producer structure: events must
// arrive with contiguous, strictly increasing sequence numbers.
type Builder struct {
	maxEvents   int
	maxValueLen int
	logger      *slog.Logger

	stack []*CallRecord
	roots []*CallRecord

	lastSeq uint64
	seen    bool
	count   int

	truncated bool
	elisions  []ElisionStage

	startedAt time.Time
	lastAt    time.Time
	finalized bool
}

// NewBuilder creates a new Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		maxEvents:   DefaultMaxEvents,
		maxValueLen: DefaultMaxValueLen,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Push ingests one event in arrival order. A gapped or out-of-order
// sequence number, a call_returned that does not match the open record,
// or a push after Finalize is a contract violation reported as ErrBuild.
func (b *Builder) Push(ev *Event) error {
	if b.finalized {
		return goerr.Wrap(ErrBuild, "push after finalize")
	}
	if ev == nil {
		return goerr.Wrap(ErrBuild, "nil event")
	}

	if b.seen {
		if ev.Seq != b.lastSeq+1 {
			return goerr.Wrap(ErrBuild, "gapped or out-of-order sequence",
				goerr.V("got", ev.Seq), goerr.V("want", b.lastSeq+1))
		}
	} else {
		b.startedAt = ev.At
		b.seen = true
	}
	b.lastSeq = ev.Seq
	b.lastAt = ev.At

	b.clipSnapshots(ev)

	switch ev.Kind {
	case EventCallEntered:
		if ev.Call == nil {
			return goerr.Wrap(ErrBuild, "call_entered without call data", goerr.V("seq", ev.Seq))
		}
		rec := &CallRecord{Name: ev.Call.Name, Entry: ev}
		if len(b.stack) == 0 {
			b.roots = append(b.roots, rec)
		} else {
			top := b.stack[len(b.stack)-1]
			top.Children = append(top.Children, rec)
		}
		b.stack = append(b.stack, rec)

	case EventCallReturned:
		if len(b.stack) == 0 {
			return goerr.Wrap(ErrBuild, "call_returned with no open record", goerr.V("seq", ev.Seq))
		}
		top := b.stack[len(b.stack)-1]
		if ev.Call == nil || ev.Call.Name != top.Name {
			return goerr.Wrap(ErrBuild, "call_returned does not match open record",
				goerr.V("open", top.Name), goerr.V("event", ev.Call))
		}
		b.stack = b.stack[:len(b.stack)-1]
		top.Exit = ev
		top.Duration = ev.At.Sub(top.Entry.At)

	case EventLineExecuted, EventVariableChanged, EventExceptionRaised:
		if len(b.stack) == 0 {
			return goerr.Wrap(ErrBuild, "event outside any call",
				goerr.V("kind", ev.Kind), goerr.V("seq", ev.Seq))
		}
		top := b.stack[len(b.stack)-1]
		top.Events = append(top.Events, ev)

	default:
		return goerr.Wrap(ErrBuild, "unknown event kind", goerr.V("kind", ev.Kind))
	}

	b.count++
	if b.count > b.maxEvents {
		b.truncated = true
		b.compact()
	}

	return nil
}

// Finalize seals the trace. Records still open are flagged unterminated
// rather than silently dropped. After Finalize the trace is immutable
// and further pushes fail.
func (b *Builder) Finalize() (*Trace, error) {
	if b.finalized {
		return nil, goerr.Wrap(ErrBuild, "already finalized")
	}
	b.finalized = true

	for _, rec := range b.stack {
		rec.Unterminated = true
	}
	b.stack = nil

	if b.count > b.maxEvents {
		b.truncated = true
		b.compact()
	}

	endedAt := b.lastAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	return &Trace{
		TraceID:    uuid.Must(uuid.NewV7()).String(),
		StartedAt:  b.startedAt,
		EndedAt:    endedAt,
		Roots:      b.roots,
		Truncated:  b.truncated,
		Elisions:   b.elisions,
		EventCount: b.count,
	}, nil
}

// Truncated reports whether the budget has forced elision so far.
func (b *Builder) Truncated() bool {
	return b.truncated
}

// EventCount returns the number of events currently held.
func (b *Builder) EventCount() int {
	return b.count
}

func (b *Builder) clipSnapshots(ev *Event) {
	if ev.Var != nil {
		ev.Var.Value = clip(ev.Var.Value, b.maxValueLen)
	}
	if ev.Call != nil && ev.Call.Return != "" {
		ev.Call.Return = clip(ev.Call.Return, b.maxValueLen)
	}
}

// compact elides detail until the trace fits the budget again. Stages
// run in a fixed order so what the AI backend sees is reproducible:
// repeated identical variable values collapse first, then idle line
// events, then the deepest call records, and as a last resort the
// oldest interior events. Every stage can be a no-op (all values
// distinct, no line events, a flat call tree), so the terminal stage
// must always be able to reach the budget on its own.
func (b *Builder) compact() {
	if b.count <= b.maxEvents {
		return
	}

	b.runStage(ElideRepeatedVars, b.collapseRepeatedVars)
	if b.count <= b.maxEvents {
		return
	}

	b.runStage(ElideIdleLines, b.dropIdleLines)
	if b.count <= b.maxEvents {
		return
	}

	b.runStage(ElideDeepCalls, b.dropDeepCalls)
	if b.count <= b.maxEvents {
		return
	}

	b.runStage(ElideOldestEvents, b.dropOldestEvents)
}

func (b *Builder) runStage(stage ElisionStage, fn func() int) {
	dropped := fn()
	if dropped == 0 {
		return
	}
	b.count -= dropped
	b.logger.Debug("elision stage applied", "stage", stage, "dropped", dropped, "remaining", b.count)
	for _, s := range b.elisions {
		if s == stage {
			return
		}
	}
	b.elisions = append(b.elisions, stage)
}

// collapseRepeatedVars keeps, per record, only the last occurrence of
// each identical (variable, value) pair.
func (b *Builder) collapseRepeatedVars() int {
	dropped := 0
	b.walk(func(rec *CallRecord) {
		seen := make(map[string]struct{})
		kept := make([]*Event, 0, len(rec.Events))
		for i := len(rec.Events) - 1; i >= 0; i-- {
			ev := rec.Events[i]
			if ev.Kind == EventVariableChanged && ev.Var != nil {
				key := ev.Var.Name + "\x00" + ev.Var.Value
				if _, ok := seen[key]; ok {
					dropped++
					continue
				}
				seen[key] = struct{}{}
			}
			kept = append(kept, ev)
		}
		// kept was built back-to-front
		for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
			kept[i], kept[j] = kept[j], kept[i]
		}
		rec.Events = kept
	})
	return dropped
}

func (b *Builder) dropIdleLines() int {
	dropped := 0
	b.walk(func(rec *CallRecord) {
		kept := rec.Events[:0]
		for _, ev := range rec.Events {
			if ev.Kind == EventLineExecuted {
				dropped++
				continue
			}
			kept = append(kept, ev)
		}
		rec.Events = kept
	})
	return dropped
}

// dropDeepCalls prunes whole records, deepest nesting level first.
// Records still open on the stack are never pruned so later returns can
// match. Pruning stops as soon as the budget is met or only the roots
// remain.
func (b *Builder) dropDeepCalls() int {
	open := make(map[*CallRecord]struct{}, len(b.stack))
	for _, rec := range b.stack {
		open[rec] = struct{}{}
	}

	dropped := 0
	for b.count-dropped > b.maxEvents {
		deepest := 0
		for _, root := range b.roots {
			if d := root.maxDepth(); d > deepest {
				deepest = d
			}
		}
		if deepest <= 1 {
			break
		}

		removed := 0
		for _, root := range b.roots {
			removed += pruneAtDepth(root, 1, deepest, open)
		}
		if removed == 0 {
			break
		}
		dropped += removed
	}
	return dropped
}

// dropOldestEvents discards interior events oldest first until the
// budget is met. Events holding a variable's final value in their
// record go last, so the end state survives the longest. Call boundary
// events are never elided: record structure is the floor.
func (b *Builder) dropOldestEvents() int {
	over := b.count - b.maxEvents
	if over <= 0 {
		return 0
	}

	type candidate struct {
		ev   *Event
		last bool
	}
	var cands []candidate
	b.walk(func(rec *CallRecord) {
		lastVar := make(map[string]*Event)
		for _, ev := range rec.Events {
			if ev.Kind == EventVariableChanged && ev.Var != nil {
				lastVar[ev.Var.Name] = ev
			}
		}
		for _, ev := range rec.Events {
			last := ev.Kind == EventVariableChanged && ev.Var != nil && lastVar[ev.Var.Name] == ev
			cands = append(cands, candidate{ev: ev, last: last})
		}
	})

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].last != cands[j].last {
			return !cands[i].last
		}
		return cands[i].ev.Seq < cands[j].ev.Seq
	})

	drop := make(map[*Event]struct{}, over)
	for i := 0; i < len(cands) && len(drop) < over; i++ {
		drop[cands[i].ev] = struct{}{}
	}
	if len(drop) == 0 {
		return 0
	}

	b.walk(func(rec *CallRecord) {
		kept := rec.Events[:0]
		for _, ev := range rec.Events {
			if _, gone := drop[ev]; gone {
				continue
			}
			kept = append(kept, ev)
		}
		rec.Events = kept
	})
	return len(drop)
}

func pruneAtDepth(rec *CallRecord, depth, target int, open map[*CallRecord]struct{}) int {
	if depth+1 < target {
		removed := 0
		for _, c := range rec.Children {
			removed += pruneAtDepth(c, depth+1, target, open)
		}
		return removed
	}

	// Children here sit at the deepest level of the tree.
	removed := 0
	kept := rec.Children[:0]
	for _, c := range rec.Children {
		if _, isOpen := open[c]; isOpen {
			kept = append(kept, c)
			continue
		}
		removed += c.eventCount()
	}
	rec.Children = kept
	return removed
}

// walk applies fn to every record in the tree, parents first.
func (b *Builder) walk(fn func(*CallRecord)) {
	var visit func(*CallRecord)
	visit = func(rec *CallRecord) {
		fn(rec)
		for _, c := range rec.Children {
			visit(c)
		}
	}
	for _, root := range b.roots {
		visit(root)
	}
}
