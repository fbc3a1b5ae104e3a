package scripts

import (
	_ "embed"
	"fmt"
	"time"
)

//go:embed templates/run_until_halt.gdb.tmpl
var runUntilHaltTemplate string

// RunUntilHaltScript resumes the target (optionally) and waits for it to
// halt again, all in one GDB session. OpenOCD halts the target whenever GDB
// attaches, so a resume issued in an earlier session would not survive.
type RunUntilHaltScript struct {
	target  Target
	resume  bool
	timeout time.Duration
	stream  bool
}

// NewRunUntilHaltScript creates a script that waits up to timeout for the
// target to halt, resuming it first if resume is set.
func NewRunUntilHaltScript(target Target, resume bool, timeout time.Duration, stream bool) *RunUntilHaltScript {
	return &RunUntilHaltScript{target: target, resume: resume, timeout: timeout, stream: stream}
}

// Name implements Script.Name
func (s *RunUntilHaltScript) Name() string {
	return "run_until_halt"
}

// Template implements Script.Template
func (s *RunUntilHaltScript) Template() string {
	return connectTemplate + runUntilHaltTemplate
}

// Params implements Script.Params
func (s *RunUntilHaltScript) Params() map[string]interface{} {
	params := s.target.params()
	params["Resume"] = s.resume
	params["TimeoutMillis"] = s.timeout.Milliseconds()
	return params
}

// Parse implements Script.Parse
func (s *RunUntilHaltScript) Parse(output string) (*Result, error) {
	return markerResult(output, fmt.Sprintf("waiting %s for halt", s.timeout)), nil
}

// Streaming implements Script.Streaming
func (s *RunUntilHaltScript) Streaming() bool {
	return s.stream
}

// WaitTimeout implements Waiter
func (s *RunUntilHaltScript) WaitTimeout() time.Duration {
	return s.timeout
}
