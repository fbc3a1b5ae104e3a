package scripts

import (
	"time"
)

// Script represents a GDB operation that can be executed against OpenOCD.
// Every probe operation (reset, memory access, register access, running the
// target) implements this interface.
type Script interface {
	// Name returns a short identifier for this script.
	// Used for logging, temporary file names and error messages.
	// Example: "reset_halt", "read_memory", "run_until_halt"
	Name() string

	// Template returns the GDB script template content.
	// The template uses Go text/template syntax and can access parameters
	// via the map returned by Params().
	// Example: "target extended-remote {{.OpenOCDHost}}:{{.OpenOCDPort}}\n..."
	Template() string

	// Params returns the parameters to be substituted into the template.
	Params() map[string]interface{}

	// Parse extracts structured results from GDB output.
	// The output parameter contains stdout from the GDB command.
	// Returns an error if the output does not have the expected shape
	// (use *ParseError).
	Parse(output string) (*Result, error)

	// Streaming indicates whether this script should copy its output to the
	// terminal while it runs. Only long-running scripts return true.
	Streaming() bool
}

// Waiter is implemented by scripts that block on the target for a known
// duration. The executor extends its process timeout by WaitTimeout.
type Waiter interface {
	WaitTimeout() time.Duration
}

// Target is the OpenOCD GDB server every script connects to.
type Target struct {
	Host string
	Port int
}

func (t Target) params() map[string]interface{} {
	return map[string]interface{}{
		"OpenOCDHost": t.Host,
		"OpenOCDPort": t.Port,
	}
}

// Result represents the outcome of executing a GDB script.
type Result struct {
	// Success indicates whether the overall operation succeeded.
	Success bool

	// Duration is how long the GDB script took to execute.
	Duration time.Duration

	// BytesWritten is the number of target bytes written.
	BytesWritten int

	// BytesRead is the number of target bytes read.
	BytesRead int

	// Steps contains progress information extracted from echo markers:
	//
	//	echo [1/2] Resetting target...\n
	Steps []Step

	// Data contains operation-specific parsed data.
	//   - "memory": []byte (read_memory)
	//   - "value": uint32 (read_register)
	Data map[string]interface{}

	// Error contains the error if the operation failed.
	Error error

	// RawOutput contains the complete stdout from GDB.
	RawOutput string

	// RawStderr contains the complete stderr from GDB.
	RawStderr string
}

// Step represents a single step in a multi-step GDB operation.
type Step struct {
	// Name is the step description, e.g. "[1/2] Resuming target".
	Name string

	// Status is one of "success", "failed" or "skipped".
	Status string

	// Message provides additional context about the step.
	Message string
}

// NewResult creates a new Result with default values.
func NewResult() *Result {
	return &Result{
		Success: false,
		Steps:   make([]Step, 0),
		Data:    make(map[string]interface{}),
	}
}

// AddStep adds a step to the result.
func (r *Result) AddStep(name, status, message string) {
	r.Steps = append(r.Steps, Step{
		Name:    name,
		Status:  status,
		Message: message,
	})
}

// SetData sets a data value in the result.
func (r *Result) SetData(key string, value interface{}) {
	r.Data[key] = value
}

// GetData gets a data value from the result.
// Returns nil if the key doesn't exist.
func (r *Result) GetData(key string) interface{} {
	return r.Data[key]
}

// GetDataBytes gets a byte slice from the result.
func (r *Result) GetDataBytes(key string) []byte {
	if v, ok := r.Data[key].([]byte); ok {
		return v
	}
	return nil
}

// GetDataUint32 gets a uint32 from the result.
// Returns 0 if the key doesn't exist or value is not a uint32.
func (r *Result) GetDataUint32(key string) uint32 {
	if v, ok := r.Data[key].(uint32); ok {
		return v
	}
	return 0
}

// FailedSteps returns the count of failed steps.
func (r *Result) FailedSteps() int {
	count := 0
	for _, step := range r.Steps {
		if step.Status == "failed" {
			count++
		}
	}
	return count
}

// TotalSteps returns the total number of steps.
func (r *Result) TotalSteps() int {
	return len(r.Steps)
}
