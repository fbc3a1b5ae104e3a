package target

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned (wrapped) when a core does not halt in time.
var ErrTimeout = errors.New("timed out waiting for core to halt")

// FaultError is returned when the simulated core cannot continue.
type FaultError struct {
	// PC is the address of the faulting instruction.
	PC uint32
	// Reason describes the fault.
	Reason string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("core fault at pc=0x%08x: %s", e.PC, e.Reason)
}

// Hook is native code bound to an address of the simulated core. When the
// core is resumed with its PC at the hook address the hook runs instead of
// instructions and the core halts afterwards, as if it hit a breakpoint.
type Hook func(s *Simulator) error

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	// Regions is the RAM (and flash) available to the core.
	Regions []Region

	// InitialStackPointer is loaded into SP on reset.
	InitialStackPointer uint32

	// ResetPC is loaded into PC on reset.
	ResetPC uint32

	// MaxSteps bounds the number of instructions per run.
	// Default: 1 << 26
	MaxSteps int
}

// SimulatorStats counts host-side probe traffic and executed instructions.
type SimulatorStats struct {
	BytesRead    int
	BytesWritten int
	Instructions int
	Resumes      int
}

type memory struct {
	region Region
	data   []byte
}

// Simulator is an in-memory Cortex-M core implementing Core.
//
// It interprets the Thumb-16 subset needed by injected subroutines:
// LDR (literal), CMP (register), B<cond>, B, STMIA and BKPT.
type Simulator struct {
	config  SimulatorConfig
	mem     []*memory
	regs    [16]uint32
	n, z, c bool
	v       bool
	running bool
	hooks   map[uint32]Hook
	stats   SimulatorStats
}

var _ Core = (*Simulator)(nil)

// NewSimulator creates a halted simulator with zeroed memory.
func NewSimulator(config SimulatorConfig) *Simulator {
	if config.MaxSteps <= 0 {
		config.MaxSteps = 1 << 26
	}
	s := &Simulator{
		config: config,
		hooks:  make(map[uint32]Hook),
	}
	for _, r := range config.Regions {
		s.mem = append(s.mem, &memory{region: r, data: make([]byte, r.Size)})
	}
	s.reset()
	return s
}

// Hook binds fn to address.
func (s *Simulator) Hook(address uint32, fn Hook) {
	s.hooks[address] = fn
}

// Stats returns the traffic counters.
func (s *Simulator) Stats() SimulatorStats {
	return s.stats
}

// Running reports whether the core has been resumed and has not halted yet.
func (s *Simulator) Running() bool {
	return s.running
}

// Register returns a register value without going through the probe path.
func (s *Simulator) Register(id Register) uint32 {
	return s.regs[id&0xf]
}

// Poke writes target memory without counting it as probe traffic.
// Hooks use it to emulate what a running program does.
func (s *Simulator) Poke(address uint32, data []byte) error {
	buf, err := s.slice(address, len(data))
	if err != nil {
		return err
	}
	copy(buf, data)
	return nil
}

// Peek reads target memory without counting it as probe traffic.
func (s *Simulator) Peek(address uint32, length int) ([]byte, error) {
	buf, err := s.slice(address, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, buf)
	return out, nil
}

func (s *Simulator) reset() {
	s.regs = [16]uint32{}
	s.regs[RegisterSP] = s.config.InitialStackPointer
	s.regs[RegisterPC] = s.config.ResetPC
	s.n, s.z, s.c, s.v = false, false, false, false
	s.running = false
}

// ResetAndHalt implements Core.
func (s *Simulator) ResetAndHalt(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.reset()
	return nil
}

// ReadBytes implements Core.
func (s *Simulator) ReadBytes(ctx context.Context, address uint32, length int) ([]byte, error) {
	if err := s.halted(ctx); err != nil {
		return nil, err
	}
	out, err := s.Peek(address, length)
	if err != nil {
		return nil, err
	}
	s.stats.BytesRead += length
	return out, nil
}

// WriteBytes implements Core.
func (s *Simulator) WriteBytes(ctx context.Context, address uint32, data []byte) error {
	if err := s.halted(ctx); err != nil {
		return err
	}
	if err := s.Poke(address, data); err != nil {
		return err
	}
	s.stats.BytesWritten += len(data)
	return nil
}

// ReadRegister implements Core.
func (s *Simulator) ReadRegister(ctx context.Context, id Register) (uint32, error) {
	if err := s.halted(ctx); err != nil {
		return 0, err
	}
	if id > RegisterPC {
		return 0, fmt.Errorf("unknown register %d", id)
	}
	return s.regs[id], nil
}

// WriteRegister implements Core.
func (s *Simulator) WriteRegister(ctx context.Context, id Register, value uint32) error {
	if err := s.halted(ctx); err != nil {
		return err
	}
	if id > RegisterPC {
		return fmt.Errorf("unknown register %d", id)
	}
	s.regs[id] = value
	return nil
}

// Resume implements Core.
func (s *Simulator) Resume(ctx context.Context) error {
	if err := s.halted(ctx); err != nil {
		return err
	}
	s.running = true
	s.stats.Resumes++
	return nil
}

// WaitUntilHalted implements Core. Instructions execute here, so a wait is
// what drives the simulated core forward.
func (s *Simulator) WaitUntilHalted(ctx context.Context, timeout time.Duration) error {
	if !s.running {
		return nil
	}

	pc := s.regs[RegisterPC]
	if hook, ok := s.hooks[pc]; ok {
		s.running = false
		return hook(s)
	}

	deadline := time.Now().Add(timeout)
	for steps := 0; ; steps++ {
		if steps >= s.config.MaxSteps {
			return fmt.Errorf("%w after %d instructions", ErrTimeout, steps)
		}
		if steps&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if timeout > 0 && time.Now().After(deadline) {
				return fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
		}

		halt, err := s.step()
		if err != nil {
			s.running = false
			return err
		}
		if halt {
			s.running = false
			return nil
		}
	}
}

func (s *Simulator) halted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.running {
		return errors.New("core is running")
	}
	return nil
}

func (s *Simulator) slice(address uint32, length int) ([]byte, error) {
	for _, m := range s.mem {
		if m.region.ContainsRange(address, length) {
			off := address - m.region.Start
			return m.data[off : off+uint32(length)], nil
		}
	}
	return nil, fmt.Errorf("memory access out of range: 0x%08x (%d bytes)", address, length)
}

func (s *Simulator) load32(address uint32) (uint32, error) {
	if address%4 != 0 {
		return 0, fmt.Errorf("unaligned word load at 0x%08x", address)
	}
	buf, err := s.slice(address, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (s *Simulator) store32(address, value uint32) error {
	if address%4 != 0 {
		return fmt.Errorf("unaligned word store at 0x%08x", address)
	}
	buf, err := s.slice(address, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf, value)
	return nil
}

// step executes one instruction and reports whether the core halted.
func (s *Simulator) step() (bool, error) {
	pc := s.regs[RegisterPC]
	fault := func(reason string) error {
		return &FaultError{PC: pc, Reason: reason}
	}

	raw, err := s.slice(pc, 2)
	if err != nil {
		return false, fault(err.Error())
	}
	hw := binary.LittleEndian.Uint16(raw)
	s.stats.Instructions++

	// Thumb reads PC as the instruction address plus 4.
	pcRead := pc + 4
	next := pc + 2

	switch {
	case hw&0xff00 == 0xbe00: // BKPT #imm8
		return true, nil

	case hw&0xf800 == 0x4800: // LDR Rt, [PC, #imm8*4]
		rt := (hw >> 8) & 0x7
		addr := (pcRead &^ 3) + uint32(hw&0xff)*4
		val, err := s.load32(addr)
		if err != nil {
			return false, fault(err.Error())
		}
		s.regs[rt] = val

	case hw&0xffc0 == 0x4280: // CMP Rn, Rm
		rm := (hw >> 3) & 0x7
		rn := hw & 0x7
		s.compare(s.regs[rn], s.regs[rm])

	case hw&0xf000 == 0xd000 && hw&0x0f00 < 0x0e00: // B<cond> label
		if s.condition(uint8(hw>>8) & 0xf) {
			offset := int32(int8(hw&0xff)) * 2
			next = uint32(int32(pcRead) + offset)
		}

	case hw&0xf800 == 0xe000: // B label
		imm11 := int32(hw & 0x7ff)
		if imm11&0x400 != 0 {
			imm11 -= 0x800
		}
		next = uint32(int32(pcRead) + imm11*2)

	case hw&0xf800 == 0xc000: // STMIA Rn!, {reglist}
		rn := (hw >> 8) & 0x7
		list := hw & 0xff
		if list == 0 {
			return false, fault("stmia with empty register list")
		}
		addr := s.regs[rn]
		for r := 0; r < 8; r++ {
			if list&(1<<r) == 0 {
				continue
			}
			if err := s.store32(addr, s.regs[r]); err != nil {
				return false, fault(err.Error())
			}
			addr += 4
		}
		s.regs[rn] = addr

	case hw == 0xbf00: // NOP

	default:
		return false, fault(fmt.Sprintf("unsupported instruction %#04x", hw))
	}

	s.regs[RegisterPC] = next
	return false, nil
}

func (s *Simulator) compare(a, b uint32) {
	result := a - b
	s.n = int32(result) < 0
	s.z = result == 0
	s.c = a >= b
	s.v = ((a^b)&(a^result))>>31 != 0
}

func (s *Simulator) condition(cond uint8) bool {
	switch cond {
	case 0x0: // EQ
		return s.z
	case 0x1: // NE
		return !s.z
	case 0x2: // CS
		return s.c
	case 0x3: // CC
		return !s.c
	case 0x4: // MI
		return s.n
	case 0x5: // PL
		return !s.n
	case 0x6: // VS
		return s.v
	case 0x7: // VC
		return !s.v
	case 0x8: // HI
		return s.c && !s.z
	case 0x9: // LS
		return !s.c || s.z
	case 0xa: // GE
		return s.n == s.v
	case 0xb: // LT
		return s.n != s.v
	case 0xc: // GT
		return !s.z && s.n == s.v
	case 0xd: // LE
		return s.z || s.n != s.v
	default:
		return true
	}
}
