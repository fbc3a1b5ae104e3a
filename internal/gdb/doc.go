// Package gdb drives a Cortex-M target through arm-none-eabi-gdb and
// OpenOCD.
//
// Every probe operation is a short GDB session: a script template is
// rendered, written to a temporary file and run with `gdb -batch`. The
// session connects to OpenOCD's GDB server, performs one operation and
// exits.
//
// # Architecture
//
//	┌─────────────────┐
//	│ canary.Monitor  │  Paints and measures the stack
//	└────────┬────────┘
//	         │ target.Core
//	         v
//	┌─────────────────┐
//	│ Core            │  ResetAndHalt, ReadBytes, WriteBytes, registers,
//	│                 │  Resume, WaitUntilHalted
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Script          │  Implements: Name(), Template(), Params(), Parse()
//	│ (read_memory)   │
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Executor        │  Renders template, executes GDB, cleans up
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Parser          │  Step markers and known GDB/OpenOCD errors
//	└─────────────────┘
//
// # Core Components
//
// Executor: Runs GDB scripts via os/exec with timeout and error handling
//
//	config := gdb.DefaultConfig()
//	config.OpenOCDPort = 3333
//	executor := gdb.NewExecutor(config, logger)
//	result, err := executor.Execute(ctx, script)
//
// Core: Implements target.Core on top of the executor
//
//	core := gdb.NewCore(executor, logger, false)
//	data, err := core.ReadBytes(ctx, 0x20000400, 1024)
//
// # GDB Scripts
//
// Scripts live in the scripts subpackage. Each template starts with the
// shared connect preamble:
//
//	set pagination off
//	set confirm off
//	target extended-remote {{.OpenOCDHost}}:{{.OpenOCDPort}}
//
// and ends with `echo [SUCCESS]\n`. With -batch, GDB stops at the first
// failing command, so the marker only appears if every command succeeded.
//
// Memory is read with `x/<n>xb` between [DATA BEGIN] and [DATA END]
// markers and written one word per `set {unsigned int}addr = value`.
// Registers are read with `info registers <name>` and written with
// `set $<name> = value`.
//
// # Running the Target
//
// OpenOCD halts the target whenever GDB attaches. A resume issued in one
// session would therefore be undone by the next. Core.Resume only records
// the request; Core.WaitUntilHalted then runs
//
//	monitor resume
//	monitor wait_halt <ms>
//
// in a single session. If wait_halt times out, the error matches
// target.ErrTimeout.
//
// # Error Handling
//
// The package defines specific error types for different failure modes:
//   - GDBExecutionError: GDB command failed (exit code, stderr, missing marker)
//   - GDBConnectionError: Cannot connect to OpenOCD
//   - GDBParseError: Failed to parse GDB output
//   - TemplateError: Script template failed to render
//   - TimeoutError: Session or target wait ran out of time
//   - PrerequisiteError: GDB binary missing or not GNU GDB
//
// All errors include context and can be unwrapped with errors.Unwrap().
//
// # Prerequisites
//
// The package requires:
//   - arm-none-eabi-gdb (or gdb-multiarch)
//   - OpenOCD running with the probe and target configured
//
// Use ValidatePrerequisites() to check for these before operations.
//
// # Thread Safety
//
// Core is not safe for concurrent use. OpenOCD serves one GDB connection
// per target at a time.
package gdb
