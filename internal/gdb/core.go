package gdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jannic/probe-run/internal/gdb/scripts"
	"github.com/jannic/probe-run/internal/target"
	"go.uber.org/zap"
)

// Core drives a Cortex-M core through GDB and OpenOCD. Every operation is
// one GDB session.
//
// OpenOCD halts the target when GDB attaches, so Resume only records that
// the next WaitUntilHalted must resume the core first. The resume and the
// wait then run in the same session.
type Core struct {
	executor *Executor
	logger   *zap.Logger
	stream   bool

	pendingResume bool
}

var _ target.Core = (*Core)(nil)

// NewCore creates a core backed by executor. If stream is set, GDB output
// is copied to the terminal while the target runs.
func NewCore(executor *Executor, logger *zap.Logger, stream bool) *Core {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Core{executor: executor, logger: logger, stream: stream}
}

func (c *Core) run(ctx context.Context, script scripts.Script) (*scripts.Result, error) {
	result, err := c.executor.Execute(ctx, script)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, &GDBExecutionError{
			Script: script.Name(),
			Stdout: result.RawOutput,
			Stderr: result.RawStderr,
			Err:    result.Error,
		}
	}
	return result, nil
}

// ResetAndHalt implements target.Core.
func (c *Core) ResetAndHalt(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.executor.Config().Timeout+timeout)
	defer cancel()

	c.pendingResume = false
	_, err := c.run(ctx, scripts.NewResetHaltScript(c.executor.Target()))
	return err
}

// ReadBytes implements target.Core.
func (c *Core) ReadBytes(ctx context.Context, address uint32, length int) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	result, err := c.run(ctx, scripts.NewReadMemoryScript(c.executor.Target(), address, length))
	if err != nil {
		return nil, err
	}
	return result.GetDataBytes("memory"), nil
}

// WriteBytes implements target.Core.
func (c *Core) WriteBytes(ctx context.Context, address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := c.run(ctx, scripts.NewWriteMemoryScript(c.executor.Target(), address, data))
	return err
}

// ReadRegister implements target.Core.
func (c *Core) ReadRegister(ctx context.Context, id target.Register) (uint32, error) {
	result, err := c.run(ctx, scripts.NewReadRegisterScript(c.executor.Target(), id.String()))
	if err != nil {
		return 0, err
	}
	return result.GetDataUint32("value"), nil
}

// WriteRegister implements target.Core.
func (c *Core) WriteRegister(ctx context.Context, id target.Register, value uint32) error {
	_, err := c.run(ctx, scripts.NewWriteRegisterScript(c.executor.Target(), id.String(), value))
	return err
}

// Resume implements target.Core. The core is resumed by the next
// WaitUntilHalted.
func (c *Core) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.pendingResume = true
	c.logger.Debug("resume deferred until wait")
	return nil
}

// WaitUntilHalted implements target.Core.
func (c *Core) WaitUntilHalted(ctx context.Context, timeout time.Duration) error {
	resume := c.pendingResume
	c.pendingResume = false

	_, err := c.run(ctx, scripts.NewRunUntilHaltScript(c.executor.Target(), resume, timeout, c.stream))
	if err != nil {
		return fmt.Errorf("target did not halt within %s: %w", timeout, err)
	}
	return nil
}

// VerifySetup connects to OpenOCD, lists its targets and halts the first.
func (c *Core) VerifySetup(ctx context.Context) ([]string, string, error) {
	result, err := c.run(ctx, scripts.NewVerifySetupScript(c.executor.Target()))
	if err != nil {
		return nil, "", err
	}
	targets, _ := result.GetData("targets").([]string)
	state, _ := result.GetData("state").(string)
	return targets, state, nil
}
