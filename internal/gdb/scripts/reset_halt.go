package scripts

import (
	_ "embed"
)

//go:embed templates/connect.gdb.tmpl
var connectTemplate string

//go:embed templates/reset_halt.gdb.tmpl
var resetHaltTemplate string

// ResetHaltScript resets the target and leaves it halted at the reset vector.
type ResetHaltScript struct {
	target Target
}

// NewResetHaltScript creates a new reset script.
func NewResetHaltScript(target Target) *ResetHaltScript {
	return &ResetHaltScript{target: target}
}

// Name implements Script.Name
func (s *ResetHaltScript) Name() string {
	return "reset_halt"
}

// Template implements Script.Template
func (s *ResetHaltScript) Template() string {
	return connectTemplate + resetHaltTemplate
}

// Params implements Script.Params
func (s *ResetHaltScript) Params() map[string]interface{} {
	return s.target.params()
}

// Parse implements Script.Parse
func (s *ResetHaltScript) Parse(output string) (*Result, error) {
	return markerResult(output, "reset"), nil
}

// Streaming implements Script.Streaming
func (s *ResetHaltScript) Streaming() bool {
	return false
}
