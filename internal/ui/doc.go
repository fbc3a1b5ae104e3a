// Package ui provides terminal output for the probe-canary CLI.
//
// Components are rendered with Lipgloss and follow a "run once and exit"
// pattern: nothing here reads user input.
//
//   - Header: command banner with the probe and program parameters
//   - Progress: step list and bar (bubbles/progress)
//   - Result: success, warning and failure boxes
//   - RenderReport: the canary verdict with a stack usage gauge
//   - RunWithSpinner: a Bubble Tea spinner shown while the probe works
//
// The Runner ties these together:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Stack Canary",
//	    Command: "probe-canary paint",
//	    Params:  []ui.Param{{Key: "OpenOCD", Value: "localhost:3333"}},
//	    Steps:   []string{"Reset and halt", "Paint canary"},
//	})
//	runner.Start()
//	err := runner.Step(ctx, 1, func(ctx context.Context) (string, error) {
//	    return "", core.ResetAndHalt(ctx, timeout)
//	})
//
// Spinners are only drawn when the output is a terminal; redirected output
// gets the plain step lines.
//
// # Logging Integration
//
// zap logging is silent unless PROBE_CANARY_LOG_LEVEL or --log-level is
// set, so the UI output is not interleaved with log lines by default.
package ui
