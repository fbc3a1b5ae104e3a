package scripts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	successMarker   = "[SUCCESS]"
	dataBeginMarker = "[DATA BEGIN]"
	dataEndMarker   = "[DATA END]"
)

var (
	// 0x20000000:	0xaa	0xaa ...
	// 0x20000008 <_stack_start+8>:	0x00 ...
	dumpLinePattern = regexp.MustCompile(`^0x([0-9a-fA-F]+)(?:\s+<[^>]*>)?:\s*(.*)$`)
	dumpBytePattern = regexp.MustCompile(`^0x([0-9a-fA-F]{1,2})$`)

	// pc             0x100               0x100 <Reset>
	registerPattern = regexp.MustCompile(`^(\w+)\s+(0x[0-9a-fA-F]+)\b`)
)

// FieldError reports which part of the GDB output could not be parsed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// HasSuccess reports whether the script ran to its success marker.
func HasSuccess(output string) bool {
	return strings.Contains(output, successMarker)
}

// ParseMemoryDump extracts length bytes starting at address from the output
// of an x/<n>xb command placed between data markers.
func ParseMemoryDump(output string, address uint32, length int) ([]byte, error) {
	begin := strings.Index(output, dataBeginMarker)
	end := strings.Index(output, dataEndMarker)
	if begin < 0 || end < begin {
		return nil, &FieldError{Field: "memory", Err: fmt.Errorf("data markers not found")}
	}

	data := make([]byte, 0, length)
	next := uint64(address)
	for _, line := range strings.Split(output[begin+len(dataBeginMarker):end], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := dumpLinePattern.FindStringSubmatch(line)
		if m == nil {
			return nil, &FieldError{Field: "memory", Err: fmt.Errorf("unexpected line %q", line)}
		}

		lineAddr, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			return nil, &FieldError{Field: "memory", Err: err}
		}
		if lineAddr != next {
			return nil, &FieldError{
				Field: "memory",
				Err:   fmt.Errorf("expected line at 0x%08x, got 0x%08x", next, lineAddr),
			}
		}

		for _, token := range strings.Fields(m[2]) {
			b := dumpBytePattern.FindStringSubmatch(token)
			if b == nil {
				return nil, &FieldError{Field: "memory", Err: fmt.Errorf("unexpected byte %q", token)}
			}
			v, _ := strconv.ParseUint(b[1], 16, 8)
			data = append(data, byte(v))
			next++
		}
	}

	if len(data) != length {
		return nil, &FieldError{
			Field: "memory",
			Err:   fmt.Errorf("expected %d bytes, got %d", length, len(data)),
		}
	}

	return data, nil
}

// ParseRegister extracts the value of register name from
// `info registers` output.
func ParseRegister(output, name string) (uint32, error) {
	for _, line := range strings.Split(output, "\n") {
		m := registerPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || m[1] != name {
			continue
		}
		v, err := strconv.ParseUint(m[2][2:], 16, 32)
		if err != nil {
			return 0, &FieldError{Field: name, Err: err}
		}
		return uint32(v), nil
	}

	return 0, &FieldError{Field: name, Err: fmt.Errorf("register not found in output")}
}

// failureLine returns the first line that looks like a GDB or OpenOCD error.
func failureLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "cannot access memory") {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// markerResult builds a Result whose success depends only on the success
// marker. what describes the operation in the failure message.
func markerResult(output, what string) *Result {
	result := NewResult()
	if HasSuccess(output) {
		result.Success = true
		return result
	}

	if line := failureLine(output); line != "" {
		result.Error = fmt.Errorf("%s failed: %s", what, line)
	} else {
		result.Error = fmt.Errorf("%s failed: success marker not found", what)
	}
	return result
}
