package target

import (
	"context"
	"fmt"
	"time"
)

// Register identifies a Cortex-M core register by its debug register number.
type Register uint16

// Core registers used by injected subroutines.
const (
	RegisterR0 Register = 0
	RegisterR1 Register = 1
	RegisterR2 Register = 2
	RegisterSP Register = 13
	RegisterLR Register = 14
	RegisterPC Register = 15
)

// String returns the conventional register name (r0, sp, pc, ...).
func (r Register) String() string {
	switch r {
	case RegisterSP:
		return "sp"
	case RegisterLR:
		return "lr"
	case RegisterPC:
		return "pc"
	default:
		return fmt.Sprintf("r%d", uint16(r))
	}
}

// Core is a single execution core reachable through a debug probe.
//
// The core is either halted, in which case memory and registers may be
// accessed freely, or running, in which case the only valid operation is
// WaitUntilHalted. Implementations are not required to be safe for
// concurrent use.
type Core interface {
	// ResetAndHalt resets the core and halts it before the first instruction.
	ResetAndHalt(ctx context.Context, timeout time.Duration) error

	// ReadBytes reads length bytes of target memory starting at address.
	ReadBytes(ctx context.Context, address uint32, length int) ([]byte, error)

	// WriteBytes writes data to target memory starting at address.
	WriteBytes(ctx context.Context, address uint32, data []byte) error

	// ReadRegister reads a core register of the halted core.
	ReadRegister(ctx context.Context, id Register) (uint32, error)

	// WriteRegister writes a core register of the halted core.
	WriteRegister(ctx context.Context, id Register, value uint32) error

	// Resume lets the halted core run.
	Resume(ctx context.Context) error

	// WaitUntilHalted blocks until the core halts or timeout elapses.
	WaitUntilHalted(ctx context.Context, timeout time.Duration) error
}
