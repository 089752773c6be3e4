package trace

import "errors"

var (
	// ErrBuild reports an event stream contract violation: out-of-order
	// or gapped sequence numbers, a call_returned that does not match the
	// open record, or a push after finalization. A build error makes the
	// trace for the current run unusable; it never affects the
	// instrumented program's own result.
	ErrBuild = errors.New("trace build violation")

	// ErrFormatVersion reports a serialized trace whose format version is
	// not supported by this loader.
	ErrFormatVersion = errors.New("unsupported trace format version")
)
