// Probe-canary detects stack overflows of Cortex-M programs through a debug
// probe.
//
// Before the program runs, the unused part of its stack is painted with a
// known byte pattern. After the program halted, the painted region is read
// back: bytes that changed show how deep the stack grew.
//
// The target is driven by arm-none-eabi-gdb through OpenOCD:
//
//   - arm-none-eabi-gdb (or gdb-multiarch) installed and in PATH
//   - OpenOCD running with the probe and target configured
//
// See 'probe-canary --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jannic/probe-run/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with a specific status. Its message has
// already been rendered.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// errOverflow is returned by commands that detected a potential overflow.
var errOverflow = &exitError{code: 2, msg: "potential stack overflow detected"}
