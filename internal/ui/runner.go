package ui

import (
	"context"
	"io"
	"time"
)

// DefaultTroubleshooting is shown when a probe command fails.
var DefaultTroubleshooting = []string{
	"Verify OpenOCD is running and attached to the target",
	"Check the target hasn't been reset or powered off",
	"Try: probe-canary verify-setup",
	"Run with --verbose for full GDB output",
}

// RunnerConfig holds configuration for a command execution
type RunnerConfig struct {
	Title   string  // Command title (e.g., "Stack Canary")
	Command string  // Full command (e.g., "probe-canary paint")
	Params  []Param // Parameters to display in header
	Steps   []string
	Verbose bool
	Output  io.Writer // default: os.Stdout
}

// Runner manages the header, step list and result of a command.
type Runner struct {
	config   RunnerConfig
	printer  *Printer
	progress *Progress
}

// NewRunner creates a new runner for a command
func NewRunner(config RunnerConfig) *Runner {
	printer := NewPrinter(config.Output)
	progress := NewProgress(config.Steps...)
	progress.SetWidth(printer.Width())

	return &Runner{
		config:   config,
		printer:  printer,
		progress: progress,
	}
}

// Printer returns the printer the runner writes through.
func (r *Runner) Printer() *Printer {
	return r.printer
}

// Progress returns the step tracker.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Start prints the header.
func (r *Runner) Start() {
	r.printer.PrintHeader(r.config.Title, r.config.Command, r.config.Params...)
}

// Step runs fn as step n. A spinner is shown while fn runs if the output
// is a terminal. The note fn returns is printed next to the step; if empty,
// the step duration is printed instead.
func (r *Runner) Step(ctx context.Context, n int, fn func(context.Context) (string, error)) error {
	if n < 1 || n > r.progress.Total() {
		_, err := fn(ctx)
		return err
	}
	r.progress.StartStep(n, "")

	var note string
	started := time.Now()
	err := RunWithSpinner(ctx, r.printer.Writer(), r.progress.Steps[n-1].Name+"...", func(ctx context.Context) error {
		var err error
		note, err = fn(ctx)
		return err
	})

	if err != nil {
		r.progress.FailStep(n, "")
	} else {
		if note == "" {
			note = time.Since(started).Round(time.Millisecond).String()
		}
		r.progress.CompleteStep(n, note)
	}
	r.printer.Println(r.progress.RenderStepLine(r.progress.Steps[n-1]))
	return err
}

// StepStreaming runs fn as step n without a spinner, for steps whose own
// output goes to the terminal while they run.
func (r *Runner) StepStreaming(ctx context.Context, n int, fn func(context.Context) (string, error)) error {
	if n < 1 || n > r.progress.Total() {
		_, err := fn(ctx)
		return err
	}
	r.progress.StartStep(n, "")
	r.printer.Println(r.progress.RenderStepLine(r.progress.Steps[n-1]))

	started := time.Now()
	note, err := fn(ctx)
	if err != nil {
		r.progress.FailStep(n, "")
	} else {
		if note == "" {
			note = time.Since(started).Round(time.Millisecond).String()
		}
		r.progress.CompleteStep(n, note)
	}
	r.printer.Println(r.progress.RenderStepLine(r.progress.Steps[n-1]))
	return err
}

// Skip marks step n as skipped.
func (r *Runner) Skip(n int, reason string) {
	if n < 1 || n > r.progress.Total() {
		return
	}
	r.progress.SkipStep(n, reason)
	r.printer.Println(r.progress.RenderStepLine(r.progress.Steps[n-1]))
}

// Finish prints the final component, e.g. a rendered report.
func (r *Runner) Finish(content string) {
	r.printer.Newline()
	r.printer.Println(content)
}

// Fail prints a failure box. gdbOutput is shown in verbose mode.
func (r *Runner) Fail(title string, err error, gdbOutput string) {
	r.printer.Newline()
	r.printer.PrintResult(NewFailureResult(title, err, DefaultTroubleshooting))
	if r.config.Verbose {
		r.printer.PrintGDBOutput(gdbOutput)
	}
}
