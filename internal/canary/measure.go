package canary

import (
	"context"
	"fmt"
	"time"

	"github.com/jannic/probe-run/internal/target"
	"go.uber.org/zap"
)

// Report is the outcome of inspecting a canary after the program halted.
type Report struct {
	// Touched is true if any canary byte no longer holds Value.
	Touched bool

	// TouchedAddress is the lowest address that no longer holds Value,
	// the high-water mark of stack growth. Zero if not touched.
	TouchedAddress uint32

	// MinStackUsage is the initial stack pointer minus TouchedAddress.
	// Zero if not touched.
	MinStackUsage uint32

	// StackAvailable is the unused stack capacity at install time.
	StackAvailable uint32

	// Percent is MinStackUsage as a percentage of StackAvailable.
	Percent float64

	// Overflow is the verdict: a potential stack overflow was detected.
	// Always false when MeasureStack is set.
	Overflow bool

	// DataCorruptionRisk is set with Overflow when static data sits
	// directly below the stack.
	DataCorruptionRisk bool

	// MeasureStack mirrors the plan's mode.
	MeasureStack bool
}

// Measure scans the painted region of plan and derives the stack usage and
// verdict. The core must be halted.
//
// Read errors are returned as *ProbeError; an unreadable canary is never
// reported as intact.
func (m *Monitor) Measure(ctx context.Context, core target.Core, plan *Plan, program target.Program) (*Report, error) {
	if plan == nil {
		return nil, fmt.Errorf("no canary plan")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if plan.MeasureStack {
		m.logger.Info("reading RAM for stack usage estimation",
			zap.String("size", kib(plan.Size)),
		)
	}

	started := time.Now()
	touched, found, err := m.findTouched(ctx, core, plan.Address, plan.Size)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(started)

	m.logger.Debug("reading canary complete",
		zap.String("plan_id", plan.ID),
		zap.Duration("duration", elapsed),
		zap.String("throughput", throughput(plan.Size, elapsed)),
	)

	report := &Report{
		StackAvailable: plan.StackAvailable,
		MeasureStack:   plan.MeasureStack,
	}

	if found {
		m.logger.Debug("canary was touched", zap.String("address", hexAddr(touched)))
		report.Touched = true
		report.TouchedAddress = touched
		if program.InitialStackPointer > touched {
			report.MinStackUsage = program.InitialStackPointer - touched
		}
	}

	if report.StackAvailable > 0 {
		report.Percent = float64(report.MinStackUsage) / float64(report.StackAvailable) * 100.0
	}

	if !plan.MeasureStack && report.Touched {
		report.Overflow = true
		report.DataCorruptionRisk = plan.DataBelowStack
	}

	return report, nil
}

// Check measures the canary of plan and reports whether a potential stack
// overflow was detected. Usage statistics are emitted as log diagnostics.
// In measurement mode Check always returns false.
func (m *Monitor) Check(ctx context.Context, core target.Core, plan *Plan, program target.Program) (bool, error) {
	report, err := m.Measure(ctx, core, plan, program)
	if err != nil {
		return false, err
	}
	m.LogReport(report)
	return report.Overflow, nil
}

// LogReport emits the usage diagnostics of report: warnings on a potential
// overflow, info in measurement mode, debug when the canary is intact.
func (m *Monitor) LogReport(report *Report) {
	usage := []zap.Field{
		zap.String("used", kib(report.MinStackUsage)),
		zap.String("available", kib(report.StackAvailable)),
		zap.Float64("percent", report.Percent),
	}

	switch {
	case report.MeasureStack:
		m.logger.Info("program has used at least this much stack space", usage...)
	case report.Overflow:
		m.logger.Warn("program has used at least this much stack space", usage...)
		if report.DataCorruptionRisk {
			m.logger.Warn("data segments might be corrupted due to stack overflow")
		}
	default:
		m.logger.Debug("stack canary intact")
	}
}

// findTouched scans [start, start+size) from the lowest address upward and
// returns the first address whose byte is not Value. The stack grows down,
// so that address is the deepest point the stack reached.
func (m *Monitor) findTouched(ctx context.Context, core target.Core, start, size uint32) (uint32, bool, error) {
	chunk := uint32(m.config.ReadChunkSize)

	for offset := uint32(0); offset < size; {
		n := min(chunk, size-offset)
		address := start + offset

		data, err := core.ReadBytes(ctx, address, int(n))
		if err != nil {
			return 0, false, &ProbeError{Op: "read canary", Address: address, Length: int(n), Err: err}
		}
		if len(data) != int(n) {
			return 0, false, &ProbeError{Op: "read canary", Address: address, Length: int(n),
				Err: fmt.Errorf("short read: got %d bytes", len(data))}
		}

		for i, b := range data {
			if b != Value {
				return address + uint32(i), true, nil
			}
		}

		offset += n
	}

	return 0, false, nil
}
