package canary

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jannic/probe-run/internal/target"
	"go.uber.org/zap"
)

const (
	// Value is the byte painted into the canary region.
	Value byte = 0xAA

	// MaxDetectionSize caps the canary size in overflow-detection mode.
	MaxDetectionSize uint32 = 1024

	// Alignment is the required alignment of canary address and size.
	Alignment uint32 = 4
)

// Config holds the configuration for installing and checking a canary.
type Config struct {
	// MeasureStack paints the whole stack and reports usage instead of
	// an overflow verdict.
	MeasureStack bool

	// Timeout bounds every reset and every wait for the core to halt.
	// Default: 5 seconds
	Timeout time.Duration

	// ReadChunkSize is the number of bytes read per probe request while
	// scanning the canary.
	// Default: 1024
	ReadChunkSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MeasureStack:  false,
		Timeout:       5 * time.Second,
		ReadChunkSize: 1024,
	}
}

// Monitor installs stack canaries and checks them after the program halted.
type Monitor struct {
	config Config
	logger *zap.Logger
}

// NewMonitor creates a Monitor. A nil logger disables logging.
func NewMonitor(config Config, logger *zap.Logger) *Monitor {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.ReadChunkSize <= 0 {
		config.ReadChunkSize = defaults.ReadChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		config: config,
		logger: logger,
	}
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config {
	return m.config
}

// Install resets and halts the core, decides whether and where to place the
// canary, and paints it.
//
// A nil Plan with a nil error means no canary was installed: the stack
// layout is unknown, or the program uses a heap that may legitimately grow
// into the same memory. Install must run before the program is started.
func (m *Monitor) Install(ctx context.Context, core target.Core, info target.Info, program target.Program) (*Plan, error) {
	if err := core.ResetAndHalt(ctx, m.config.Timeout); err != nil {
		return nil, &ProbeError{Op: "reset and halt", Err: err}
	}

	stack := info.Stack
	if stack == nil {
		m.logger.Debug("couldn't find valid stack range, not placing stack canary")
		return nil, nil
	}

	if program.UsesHeap {
		m.logger.Debug("heap in use, not placing stack canary")
		return nil, nil
	}

	available := stack.Available()
	size := Size(available, m.config.MeasureStack)

	m.logger.Debug("placing stack canary",
		zap.Uint32("stack_available", available),
		zap.String("stack_range", stack.String()),
		zap.Uint32("canary_size", size),
	)

	if m.config.MeasureStack {
		m.logger.Info("painting RAM for stack usage estimation",
			zap.String("size", kib(size)),
		)
	}

	started := time.Now()
	if err := m.paint(ctx, core, stack.Start, size); err != nil {
		return nil, fmt.Errorf("failed to paint stack canary: %w", err)
	}
	elapsed := time.Since(started)

	m.logger.Debug("setting up canary complete",
		zap.Duration("duration", elapsed),
		zap.String("throughput", throughput(size, elapsed)),
	)

	return &Plan{
		ID:             uuid.NewString(),
		Address:        stack.Start,
		Size:           size,
		StackAvailable: available,
		DataBelowStack: stack.DataBelowStack,
		MeasureStack:   m.config.MeasureStack,
		InstalledAt:    started,
	}, nil
}

func hexAddr(addr uint32) string {
	return fmt.Sprintf("0x%08x", addr)
}

func kib(n uint32) string {
	return fmt.Sprintf("%.2f KiB", float64(n)/1024.0)
}

func throughput(n uint32, d time.Duration) string {
	seconds := d.Seconds()
	if seconds <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f KiB/s", float64(n)/1024.0/seconds)
}
