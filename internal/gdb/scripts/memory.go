package scripts

import (
	_ "embed"
	"encoding/binary"
	"fmt"
)

//go:embed templates/read_memory.gdb.tmpl
var readMemoryTemplate string

//go:embed templates/write_memory.gdb.tmpl
var writeMemoryTemplate string

// ReadMemoryScript reads a block of target memory with x/<n>xb.
type ReadMemoryScript struct {
	target  Target
	address uint32
	length  int
}

// NewReadMemoryScript creates a script reading length bytes at address.
func NewReadMemoryScript(target Target, address uint32, length int) *ReadMemoryScript {
	return &ReadMemoryScript{target: target, address: address, length: length}
}

// Name implements Script.Name
func (s *ReadMemoryScript) Name() string {
	return "read_memory"
}

// Template implements Script.Template
func (s *ReadMemoryScript) Template() string {
	return connectTemplate + readMemoryTemplate
}

// Params implements Script.Params
func (s *ReadMemoryScript) Params() map[string]interface{} {
	params := s.target.params()
	params["Address"] = fmt.Sprintf("0x%08x", s.address)
	params["Length"] = s.length
	return params
}

// Parse implements Script.Parse
func (s *ReadMemoryScript) Parse(output string) (*Result, error) {
	result := markerResult(output, fmt.Sprintf("read of %d bytes at 0x%08x", s.length, s.address))
	if !result.Success {
		return result, nil
	}

	data, err := ParseMemoryDump(output, s.address, s.length)
	if err != nil {
		return nil, err
	}

	result.BytesRead = len(data)
	result.SetData("memory", data)
	return result, nil
}

// Streaming implements Script.Streaming
func (s *ReadMemoryScript) Streaming() bool {
	return false
}

// WriteMemoryScript writes a block of target memory, one word per `set`
// command with byte writes for an unaligned head or tail.
type WriteMemoryScript struct {
	target  Target
	address uint32
	data    []byte
}

// NewWriteMemoryScript creates a script writing data at address.
func NewWriteMemoryScript(target Target, address uint32, data []byte) *WriteMemoryScript {
	return &WriteMemoryScript{target: target, address: address, data: data}
}

// Name implements Script.Name
func (s *WriteMemoryScript) Name() string {
	return "write_memory"
}

// Template implements Script.Template
func (s *WriteMemoryScript) Template() string {
	return connectTemplate + writeMemoryTemplate
}

// Params implements Script.Params
func (s *WriteMemoryScript) Params() map[string]interface{} {
	params := s.target.params()
	params["Address"] = fmt.Sprintf("0x%08x", s.address)
	params["Length"] = len(s.data)
	params["Commands"] = s.Commands()
	return params
}

// Commands returns the GDB commands that perform the write.
func (s *WriteMemoryScript) Commands() []string {
	commands := make([]string, 0, len(s.data)/4+3)
	addr := s.address
	data := s.data

	for len(data) > 0 {
		if addr%4 == 0 && len(data) >= 4 {
			commands = append(commands, fmt.Sprintf("set {unsigned int}0x%08x = 0x%08x",
				addr, binary.LittleEndian.Uint32(data)))
			addr += 4
			data = data[4:]
			continue
		}
		commands = append(commands, fmt.Sprintf("set {unsigned char}0x%08x = 0x%02x", addr, data[0]))
		addr++
		data = data[1:]
	}

	return commands
}

// Parse implements Script.Parse
func (s *WriteMemoryScript) Parse(output string) (*Result, error) {
	result := markerResult(output, fmt.Sprintf("write of %d bytes at 0x%08x", len(s.data), s.address))
	if result.Success {
		result.BytesWritten = len(s.data)
	}
	return result, nil
}

// Streaming implements Script.Streaming
func (s *WriteMemoryScript) Streaming() bool {
	return false
}
