// Package target defines the narrow view of a debug-probe target that the
// stack canary needs: one Cortex-M execution core with memory and register
// access, plus the memory layout metadata of the program loaded on it.
//
// Probe backends (see package gdb) implement Core against real hardware.
// Simulator implements Core in memory and executes the Thumb instructions
// of injected subroutines, so the whole canary protocol can run without a
// board attached.
package target
