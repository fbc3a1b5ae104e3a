// Package canary detects potential stack overflows of a program running on a
// Cortex-M target observed through a debug probe.
//
// Before the program runs, the unused memory between static data and the
// stack is painted with Value:
//
//	+--------+ -> initial stack pointer
//	|        |
//	| stack  | (grows downwards)
//	|        |
//	+--------+
//	|        |
//	+--------+
//	| canary |
//	+--------+ -> stack start
//	|        |
//	| static | (variables, fixed size)
//	|        |
//	+--------+ -> lowest RAM address
//
// When the program halts (breakpoint or panic) the canary is read back. The
// lowest byte that no longer holds Value is the high-water mark of the
// stack. Any touched byte is a potential overflow.
//
// # Modes
//
// Overflow detection paints 10% of the available stack, at most 1 KiB.
// Stack measurement paints the whole stack and reports usage as a share of
// the total instead of a verdict.
//
// # Painting
//
// Painting from the host is slow, so a small Thumb subroutine is written to
// the start of the region and run on the target:
//
//	monitor := canary.NewMonitor(canary.DefaultConfig(), logger)
//	plan, err := monitor.Install(ctx, core, info, program)
//	// ... run the program until it halts ...
//	overflow, err := monitor.Check(ctx, core, plan, program)
//
// Probe errors during Install or Check leave the canary in an unknown state.
// They are returned, never retried.
package canary
