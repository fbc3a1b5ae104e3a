package canary

import (
	"fmt"
	"time"
)

// ProbeError represents a failed operation on the target core.
// The canary state is indeterminate after a ProbeError; callers must abort
// the run rather than retry.
type ProbeError struct {
	// Op is the probe operation that failed (e.g., "write memory")
	Op string
	// Address is the target address involved, if Length > 0
	Address uint32
	// Length is the number of bytes involved (0 for non-memory operations)
	Length int
	// Underlying error
	Err error
}

func (e *ProbeError) Error() string {
	if e.Length > 0 {
		return fmt.Sprintf("probe %s failed at 0x%08x (%d bytes): %v", e.Op, e.Address, e.Length, e.Err)
	}
	return fmt.Sprintf("probe %s failed: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a core that did not halt within the configured
// timeout while running injected code.
type TimeoutError struct {
	// Op is the operation that was waiting (e.g., "paint")
	Op string
	// Timeout is the duration that was exceeded
	Timeout time.Duration
	// Underlying error
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("core did not halt within %s during %s: %v\n"+
		"Hint: Increase timeout with --timeout flag or check the probe connection",
		e.Timeout, e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// PreconditionError represents a region that cannot be painted as requested:
// misaligned, or too small to host the paint subroutine.
type PreconditionError struct {
	// Field names the offending value (e.g., "start", "size")
	Field string
	// Value is the offending value
	Value uint32
	// Reason describes the violated requirement
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("invalid canary %s %#x: %s", e.Field, e.Value, e.Reason)
}
