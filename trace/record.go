package trace

import (
	"time"
)

// CallRecord represents one activation of a traced function or block.
// It owns its nested records exclusively; call trees never share nodes
// and never cross goroutines.
type CallRecord struct {
	Name  string `json:"name"`
	Entry *Event `json:"entry"`

	// Exit is the call_returned event that sealed the record. It is nil
	// when the record is unterminated.
	Exit *Event `json:"exit,omitempty"`

	// Events holds the chronological line/variable/exception events
	// observed directly inside this activation. Nested calls are held in
	// Children; interleaving across both is recovered via sequence numbers.
	Events   []*Event      `json:"events,omitempty"`
	Children []*CallRecord `json:"children,omitempty"`

	// Unterminated marks a record whose scope exited via an unrecovered
	// abort before a matching call_returned was observed.
	Unterminated bool `json:"unterminated,omitempty"`

	Duration time.Duration `json:"duration"`
}

// ReturnValue returns the snapshot of the call's return value, or an
// empty string if the call did not return normally.
func (x *CallRecord) ReturnValue() string {
	if x.Exit == nil || x.Exit.Call == nil {
		return ""
	}
	return x.Exit.Call.Return
}

// Raised returns the exception the call exited with, or nil if the call
// returned normally.
func (x *CallRecord) Raised() *ExcData {
	if x.Exit == nil || x.Exit.Call == nil {
		return nil
	}
	return x.Exit.Call.Exc
}

// eventCount returns the number of events held by the record and all of
// its descendants, including the entry/exit boundary events.
func (x *CallRecord) eventCount() int {
	n := 1 // entry
	if x.Exit != nil {
		n++
	}
	n += len(x.Events)
	for _, c := range x.Children {
		n += c.eventCount()
	}
	return n
}

// maxDepth returns the deepest nesting level under the record, where the
// record itself is depth 1.
func (x *CallRecord) maxDepth() int {
	deepest := 0
	for _, c := range x.Children {
		if d := c.maxDepth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// ElisionStage identifies one pass of the truncation policy.
type ElisionStage string

const (
	// ElideRepeatedVars collapses repeated identical variable_changed
	// values for the same variable to the last occurrence.
	ElideRepeatedVars ElisionStage = "repeated_vars"

	// ElideIdleLines drops line_executed events that carry no state change.
	ElideIdleLines ElisionStage = "idle_lines"

	// ElideDeepCalls drops the deepest nested call records.
	ElideDeepCalls ElisionStage = "deep_calls"

	// ElideOldestEvents drops the oldest surviving interior events,
	// keeping each variable's final value for as long as possible. It is
	// the terminal stage: it runs only when the prior stages could not
	// reach the budget.
	ElideOldestEvents ElisionStage = "oldest_events"
)

// Trace is the complete recorded structure of one instrumented execution.
// A Trace is immutable after Finalize.
type Trace struct {
	TraceID   string    `json:"trace_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Roots holds one root record per instrumented goroutine.
	Roots []*CallRecord `json:"roots"`

	// Truncated is set when the event budget forced elision. Elisions
	// lists which stages ran, in order.
	Truncated bool           `json:"truncated,omitempty"`
	Elisions  []ElisionStage `json:"elisions,omitempty"`

	// EventCount is the number of events surviving elision.
	EventCount int `json:"event_count"`
}
