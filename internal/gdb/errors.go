package gdb

import (
	"fmt"

	"github.com/jannic/probe-run/internal/target"
)

// GDBExecutionError is a GDB session that failed or reported a target
// problem. Stdout and Stderr hold the raw output for verbose display.
type GDBExecutionError struct {
	Script   string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *GDBExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gdb %s failed (exit %d): %v", e.Script, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("gdb %s failed (exit %d)", e.Script, e.ExitCode)
}

func (e *GDBExecutionError) Unwrap() error {
	return e.Err
}

// GDBConnectionError means GDB could not reach OpenOCD's GDB server.
type GDBConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *GDBConnectionError) Error() string {
	return fmt.Sprintf("cannot reach OpenOCD at %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *GDBConnectionError) Unwrap() error {
	return e.Err
}

// GDBParseError means a script succeeded but its output could not be
// decoded, e.g. a memory dump with missing bytes.
type GDBParseError struct {
	Script string
	// Field names the value that failed to parse, if known.
	Field  string
	Output string
	Err    error
}

func (e *GDBParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("gdb %s: cannot parse %s: %v", e.Script, e.Field, e.Err)
	}
	return fmt.Sprintf("gdb %s: cannot parse output: %v", e.Script, e.Err)
}

func (e *GDBParseError) Unwrap() error {
	return e.Err
}

// PrerequisiteError is a missing or unusable GDB binary.
type PrerequisiteError struct {
	Prerequisite string
	Details      string
	Err          error
}

func (e *PrerequisiteError) Error() string {
	msg := "missing prerequisite " + e.Prerequisite
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// TemplateError is a script template that failed to render.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("render gdb template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// TimeoutError is a GDB session, or a wait for the target to halt, that
// ran out of time. It matches target.ErrTimeout.
type TimeoutError struct {
	Script  string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gdb %s timed out after %s", e.Script, e.Timeout)
}

func (e *TimeoutError) Is(err error) bool {
	return err == target.ErrTimeout
}
