package trace_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/tracetalk/tracetalk/trace"
)

type eventFeed struct {
	seq uint64
	at  time.Time
}

func newFeed() *eventFeed {
	return &eventFeed{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *eventFeed) next(kind trace.EventKind) *trace.Event {
	f.seq++
	f.at = f.at.Add(time.Millisecond)
	return &trace.Event{Seq: f.seq, Kind: kind, At: f.at}
}

func (f *eventFeed) enter(name string) *trace.Event {
	ev := f.next(trace.EventCallEntered)
	ev.Call = &trace.CallData{Name: name}
	return ev
}

func (f *eventFeed) exit(name, ret string) *trace.Event {
	ev := f.next(trace.EventCallReturned)
	ev.Call = &trace.CallData{Name: name, Return: ret}
	return ev
}

func (f *eventFeed) setVar(name, value string) *trace.Event {
	ev := f.next(trace.EventVariableChanged)
	ev.Var = &trace.VarData{Name: name, Value: value}
	return ev
}

func (f *eventFeed) line(file string, lineNo int) *trace.Event {
	ev := f.next(trace.EventLineExecuted)
	ev.Loc = trace.Loc(file, lineNo)
	return ev
}

func TestBuilderCallPairing(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	gt.NoError(t, b.Push(f.enter("helper")))
	gt.NoError(t, b.Push(f.setVar("x", "1")))
	gt.NoError(t, b.Push(f.exit("helper", "1")))
	gt.NoError(t, b.Push(f.exit("main", "")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.Equal(t, len(tr.Roots), 1)

	root := tr.Roots[0]
	gt.Equal(t, root.Name, "main")
	gt.B(t, root.Unterminated).False()
	gt.Value(t, root.Exit).NotNil()
	gt.Equal(t, len(root.Children), 1)

	helper := root.Children[0]
	gt.Equal(t, helper.Name, "helper")
	gt.Equal(t, helper.ReturnValue(), "1")
	gt.Equal(t, len(helper.Events), 1)
	gt.B(t, helper.Duration > 0).True()
}

func TestBuilderUnterminatedRecords(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	gt.NoError(t, b.Push(f.enter("stuck")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.Equal(t, len(tr.Roots), 1)
	gt.B(t, tr.Roots[0].Unterminated).True()
	gt.B(t, tr.Roots[0].Children[0].Unterminated).True()
}

func TestBuilderMismatchedReturn(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	err := b.Push(f.exit("other", ""))
	gt.B(t, errors.Is(err, trace.ErrBuild)).True()
}

func TestBuilderReturnWithNoOpenRecord(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	err := b.Push(f.exit("main", ""))
	gt.B(t, errors.Is(err, trace.ErrBuild)).True()
}

func TestBuilderSequenceContract(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))

	// Gap
	gapped := f.setVar("x", "1")
	gapped.Seq += 5
	err := b.Push(gapped)
	gt.B(t, errors.Is(err, trace.ErrBuild)).True()
}

func TestBuilderOutOfOrderSequence(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	gt.NoError(t, b.Push(f.setVar("x", "1")))

	stale := f.setVar("y", "2")
	stale.Seq = 1
	err := b.Push(stale)
	gt.B(t, errors.Is(err, trace.ErrBuild)).True()
}

func TestBuilderPushAfterFinalize(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	gt.NoError(t, b.Push(f.exit("main", "")))
	gt.R1(b.Finalize()).NoError(t)

	err := b.Push(f.enter("late"))
	gt.B(t, errors.Is(err, trace.ErrBuild)).True()
}

func TestBuilderEventOutsideCall(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	err := b.Push(f.setVar("x", "1"))
	gt.B(t, errors.Is(err, trace.ErrBuild)).True()
}

func TestBuilderCollapsesRepeatedIdenticalVars(t *testing.T) {
	b := trace.NewBuilder(trace.WithMaxEvents(6))
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	for i := 0; i < 6; i++ {
		gt.NoError(t, b.Push(f.setVar("x", "1")))
	}
	gt.NoError(t, b.Push(f.exit("main", "")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.B(t, tr.Truncated).True()
	gt.Equal(t, tr.Elisions, []trace.ElisionStage{trace.ElideRepeatedVars})

	// Only the last identical assignment survives; structure is intact.
	root := tr.Roots[0]
	gt.Equal(t, len(root.Events), 1)
	gt.Equal(t, root.Events[0].Var.Value, "1")
	gt.Value(t, root.Exit).NotNil()
	gt.B(t, tr.EventCount <= 6).True()
}

func TestBuilderDropsIdleLinesBeforeStructure(t *testing.T) {
	b := trace.NewBuilder(trace.WithMaxEvents(6))
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	// Distinct values: the repeated-vars stage has nothing to collapse.
	gt.NoError(t, b.Push(f.setVar("x", "1")))
	gt.NoError(t, b.Push(f.setVar("x", "2")))
	for i := 0; i < 4; i++ {
		gt.NoError(t, b.Push(f.line("main.go", 10+i)))
	}
	gt.NoError(t, b.Push(f.exit("main", "")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.B(t, tr.Truncated).True()
	gt.Equal(t, tr.Elisions, []trace.ElisionStage{trace.ElideIdleLines})

	root := tr.Roots[0]
	for _, ev := range root.Events {
		gt.B(t, ev.Kind == trace.EventLineExecuted).False()
	}
	gt.Equal(t, len(root.Events), 2)
	gt.B(t, tr.EventCount <= 6).True()
}

func TestBuilderDropsDeepestCallsLast(t *testing.T) {
	b := trace.NewBuilder(trace.WithMaxEvents(4))
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("root")))
	gt.NoError(t, b.Push(f.enter("child")))
	gt.NoError(t, b.Push(f.enter("grandchild")))
	gt.NoError(t, b.Push(f.exit("grandchild", "")))
	gt.NoError(t, b.Push(f.exit("child", "")))
	gt.NoError(t, b.Push(f.exit("root", "")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.B(t, tr.Truncated).True()

	hasDeepCalls := false
	for _, stage := range tr.Elisions {
		if stage == trace.ElideDeepCalls {
			hasDeepCalls = true
		}
	}
	gt.B(t, hasDeepCalls).True()

	// The root boundary always survives structural elision.
	gt.Equal(t, len(tr.Roots), 1)
	gt.Equal(t, tr.Roots[0].Name, "root")
	gt.B(t, tr.EventCount <= 4).True()
}

func TestBuilderDropsOldestEventsAsLastResort(t *testing.T) {
	// Distinct values defeat the repeated-vars stage, there are no line
	// events, and the call tree is flat, so only the terminal stage can
	// reach the budget.
	b := trace.NewBuilder(trace.WithMaxEvents(3))
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	for i := 0; i < 10; i++ {
		gt.NoError(t, b.Push(f.setVar("x", fmt.Sprintf("%d", i))))
	}
	gt.NoError(t, b.Push(f.exit("main", "")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.B(t, tr.Truncated).True()
	gt.B(t, tr.EventCount <= 3).True()

	// The variable's final value outlives everything else.
	root := tr.Roots[0]
	var values []string
	for _, ev := range root.Events {
		if ev.Kind == trace.EventVariableChanged {
			values = append(values, ev.Var.Value)
		}
	}
	gt.Equal(t, values, []string{"9"})

	hasOldest := false
	for _, stage := range tr.Elisions {
		if stage == trace.ElideOldestEvents {
			hasOldest = true
		}
	}
	gt.B(t, hasOldest).True()
}

func TestBuilderWithinBudgetIsNotTruncated(t *testing.T) {
	b := trace.NewBuilder(trace.WithMaxEvents(100))
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	gt.NoError(t, b.Push(f.setVar("x", "1")))
	gt.NoError(t, b.Push(f.exit("main", "")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.B(t, tr.Truncated).False()
	gt.Equal(t, len(tr.Elisions), 0)
	gt.Equal(t, tr.EventCount, 3)
}

func TestBuilderClipsValueSnapshots(t *testing.T) {
	b := trace.NewBuilder(trace.WithMaxValueLen(8))
	f := newFeed()

	gt.NoError(t, b.Push(f.enter("main")))
	gt.NoError(t, b.Push(f.setVar("s", "0123456789abcdef")))
	gt.NoError(t, b.Push(f.exit("main", "")))

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.Equal(t, tr.Roots[0].Events[0].Var.Value, "01234567...")
}

func TestBuilderManyRoots(t *testing.T) {
	b := trace.NewBuilder()
	f := newFeed()

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("task%d", i)
		gt.NoError(t, b.Push(f.enter(name)))
		gt.NoError(t, b.Push(f.exit(name, "")))
	}

	tr := gt.R1(b.Finalize()).NoError(t)
	gt.Equal(t, len(tr.Roots), 3)
}
