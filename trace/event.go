package trace

import (
	"time"
)

// EventKind represents the type of a recorded event.
type EventKind string

const (
	EventLineExecuted    EventKind = "line_executed"
	EventCallEntered     EventKind = "call_entered"
	EventCallReturned    EventKind = "call_returned"
	EventVariableChanged EventKind = "variable_changed"
	EventExceptionRaised EventKind = "exception_raised"
)

// Location is a source position within the instrumented program.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Loc is a shorthand constructor for Location.
func Loc(file string, line int) Location {
	return Location{File: file, Line: line}
}

// Event is a single observation emitted by the Recorder. Events are
// immutable once recorded and carry a process-local, strictly increasing
// sequence number per stream.
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind EventKind `json:"kind"`
	Loc  Location  `json:"loc"`
	At   time.Time `json:"at"`

	// Kind-specific data (only one is non-nil based on Kind)
	Call *CallData `json:"call,omitempty"`
	Var  *VarData  `json:"var,omitempty"`
	Exc  *ExcData  `json:"exc,omitempty"`
}

// CallData holds data for call_entered and call_returned events.
type CallData struct {
	// Name is the qualified name of the callee.
	Name string `json:"name"`

	// Return is the snapshot of the return value. Only set on
	// call_returned events for calls that returned normally.
	Return string `json:"return,omitempty"`

	// Exc is set on call_returned events when the call exited via a
	// raised exception (panic) instead of a normal return.
	Exc *ExcData `json:"exc,omitempty"`
}

// VarData holds data for variable_changed events.
type VarData struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExcData describes an observed exception.
type ExcData struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
