package scripts

import (
	_ "embed"
	"fmt"
)

//go:embed templates/read_register.gdb.tmpl
var readRegisterTemplate string

//go:embed templates/write_register.gdb.tmpl
var writeRegisterTemplate string

// ReadRegisterScript reads one core register with `info registers`.
type ReadRegisterScript struct {
	target   Target
	register string
}

// NewReadRegisterScript creates a script reading the named register
// ("pc", "sp", "r0", ...).
func NewReadRegisterScript(target Target, register string) *ReadRegisterScript {
	return &ReadRegisterScript{target: target, register: register}
}

// Name implements Script.Name
func (s *ReadRegisterScript) Name() string {
	return "read_register"
}

// Template implements Script.Template
func (s *ReadRegisterScript) Template() string {
	return connectTemplate + readRegisterTemplate
}

// Params implements Script.Params
func (s *ReadRegisterScript) Params() map[string]interface{} {
	params := s.target.params()
	params["Register"] = s.register
	return params
}

// Parse implements Script.Parse
func (s *ReadRegisterScript) Parse(output string) (*Result, error) {
	result := markerResult(output, "read of register "+s.register)
	if !result.Success {
		return result, nil
	}

	value, err := ParseRegister(output, s.register)
	if err != nil {
		return nil, err
	}

	result.SetData("value", value)
	return result, nil
}

// Streaming implements Script.Streaming
func (s *ReadRegisterScript) Streaming() bool {
	return false
}

// WriteRegisterScript sets one core register.
type WriteRegisterScript struct {
	target   Target
	register string
	value    uint32
}

// NewWriteRegisterScript creates a script setting the named register.
func NewWriteRegisterScript(target Target, register string, value uint32) *WriteRegisterScript {
	return &WriteRegisterScript{target: target, register: register, value: value}
}

// Name implements Script.Name
func (s *WriteRegisterScript) Name() string {
	return "write_register"
}

// Template implements Script.Template
func (s *WriteRegisterScript) Template() string {
	return connectTemplate + writeRegisterTemplate
}

// Params implements Script.Params
func (s *WriteRegisterScript) Params() map[string]interface{} {
	params := s.target.params()
	params["Register"] = s.register
	params["Value"] = fmt.Sprintf("0x%08x", s.value)
	return params
}

// Parse implements Script.Parse
func (s *WriteRegisterScript) Parse(output string) (*Result, error) {
	return markerResult(output, "write of register "+s.register), nil
}

// Streaming implements Script.Streaming
func (s *WriteRegisterScript) Streaming() bool {
	return false
}
