package canary

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/jannic/probe-run/internal/target"
	"go.uber.org/zap"
)

// PaintSubroutineLength is the size in bytes of the paint subroutine.
const PaintSubroutineLength = 28

// PaintSubroutine returns Thumb code that fills [start, start+size) with the
// canary word and then executes a breakpoint. Both start and size must be
// 4-byte aligned.
//
//	ldr   r0, [pc, #12]   ; start
//	ldr   r1, [pc, #16]   ; end
//	ldr   r2, [pc, #16]   ; pattern
//	loop:
//	cmp   r1, r0
//	beq.n end
//	stmia r0!, {r2}
//	b.n   loop
//	end:
//	bkpt  0x0000
//	.word start
//	.word end
//	.word 0xaaaaaaaa
func PaintSubroutine(start, size uint32) ([PaintSubroutineLength]byte, error) {
	var code [PaintSubroutineLength]byte

	if start%Alignment != 0 {
		return code, &PreconditionError{Field: "start", Value: start, Reason: "must be 4-byte aligned"}
	}
	if size%Alignment != 0 {
		return code, &PreconditionError{Field: "size", Value: size, Reason: "must be 4-byte aligned"}
	}
	end := start + size
	if end < start {
		return code, &PreconditionError{Field: "size", Value: size, Reason: "region wraps around the address space"}
	}

	copy(code[:], []byte{
		0x03, 0x48, // ldr r0, [pc, #12]
		0x04, 0x49, // ldr r1, [pc, #16]
		0x04, 0x4a, // ldr r2, [pc, #16]
		0x81, 0x42, // cmp r1, r0
		0x01, 0xd0, // beq.n end
		0x04, 0xc0, // stmia r0!, {r2}
		0xfb, 0xe7, // b.n loop
		0x00, 0xbe, // bkpt 0x0000
	})
	binary.LittleEndian.PutUint32(code[16:], start)
	binary.LittleEndian.PutUint32(code[20:], end)
	copy(code[24:], bytes.Repeat([]byte{Value}, 4))

	return code, nil
}

// paint writes Value to [start, start+size) by running PaintSubroutine on
// the target. The core must be halted and is halted again on return, with
// its PC restored.
//
// The subroutine is placed at start and paints everything after itself;
// its own bytes are overwritten from the host once it has halted.
func (m *Monitor) paint(ctx context.Context, core target.Core, start, size uint32) error {
	if size < PaintSubroutineLength {
		return &PreconditionError{Field: "size", Value: size, Reason: "region is too small to host the paint subroutine"}
	}

	code, err := PaintSubroutine(start+PaintSubroutineLength, size-PaintSubroutineLength)
	if err != nil {
		return err
	}

	if err := core.WriteBytes(ctx, start, code[:]); err != nil {
		return &ProbeError{Op: "write paint subroutine", Address: start, Length: len(code), Err: err}
	}

	if err := m.runAt(ctx, core, "paint", start); err != nil {
		return err
	}

	if err := core.WriteBytes(ctx, start, bytes.Repeat([]byte{Value}, PaintSubroutineLength)); err != nil {
		return &ProbeError{Op: "overwrite paint subroutine", Address: start, Length: PaintSubroutineLength, Err: err}
	}

	return nil
}

// runAt points the PC at entry, runs the core until it halts and restores
// the previous PC on every path, so the core never resumes inside code that
// is about to be overwritten.
func (m *Monitor) runAt(ctx context.Context, core target.Core, op string, entry uint32) (err error) {
	previous, err := core.ReadRegister(ctx, target.RegisterPC)
	if err != nil {
		return &ProbeError{Op: "read pc", Err: err}
	}

	defer func() {
		// Restore even if ctx was cancelled mid-run.
		if rerr := core.WriteRegister(context.WithoutCancel(ctx), target.RegisterPC, previous); rerr != nil {
			err = errors.Join(err, &ProbeError{Op: "restore pc", Err: rerr})
		}
	}()

	if err := core.WriteRegister(ctx, target.RegisterPC, entry); err != nil {
		return &ProbeError{Op: "write pc", Err: err}
	}

	m.logger.Debug("running injected subroutine",
		zap.String("op", op),
		zap.String("entry", hexAddr(entry)),
		zap.String("previous_pc", hexAddr(previous)),
		zap.Duration("timeout", m.config.Timeout),
	)

	if err := core.Resume(ctx); err != nil {
		return &ProbeError{Op: "resume", Err: err}
	}

	started := time.Now()
	if err := core.WaitUntilHalted(ctx, m.config.Timeout); err != nil {
		if errors.Is(err, target.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Op: op, Timeout: m.config.Timeout, Err: err}
		}
		return &ProbeError{Op: "wait for halt", Err: err}
	}

	m.logger.Debug("injected subroutine halted",
		zap.String("op", op),
		zap.Duration("duration", time.Since(started)),
	)

	return nil
}
