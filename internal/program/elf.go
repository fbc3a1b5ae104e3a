package program

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jannic/probe-run/internal/target"
)

// vectorTableSections are searched in order for the reset vector table.
// The first word of the table is the initial stack pointer.
var vectorTableSections = []string{".vector_table", ".isr_vector", ".vectors"}

// stackPointerSymbols are linker symbols holding the initial stack pointer,
// used when no vector table section exists.
var stackPointerSymbols = []string{"_stack_start", "_estack", "__StackTop", "__stack"}

// heapSymbols indicate that a heap allocator is linked into the program.
var heapSymbols = map[string]bool{
	"__rust_alloc": true,
	"__rg_alloc":   true,
	"__rdl_alloc":  true,
	"malloc":       true,
	"_sbrk":        true,
	"_sbrk_r":      true,
}

// Section is an allocated, writable section of the program (static data).
type Section struct {
	Name    string
	Address uint32
	Size    uint32
}

// End returns the first address past the section.
func (s Section) End() uint64 {
	return uint64(s.Address) + uint64(s.Size)
}

// ELF is the metadata the canary needs from a Cortex-M executable.
type ELF struct {
	// Entry is the ELF entry point.
	Entry uint32

	// InitialStackPointer is the stack pointer loaded at reset.
	InitialStackPointer uint32

	// StackPointerSource names where InitialStackPointer came from.
	StackPointerSource string

	// UsesHeap is true if a heap allocator symbol is present.
	UsesHeap bool

	// Static lists .data, .bss and similar sections, sorted by address.
	Static []Section
}

// UnsupportedError represents an executable that is not a 32-bit ARM ELF.
type UnsupportedError struct {
	Class   elf.Class
	Machine elf.Machine
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported executable: %s %s (need ELFCLASS32 EM_ARM)", e.Class, e.Machine)
}

// Load reads the executable at path.
func Load(path string) (*ELF, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %s: %w", path, err)
	}
	defer f.Close()

	return parse(f)
}

// Parse reads an executable from r.
func Parse(r io.ReaderAt) (*ELF, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer f.Close()

	return parse(f)
}

func parse(f *elf.File) (*ELF, error) {
	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_ARM {
		return nil, &UnsupportedError{Class: f.Class, Machine: f.Machine}
	}

	e := &ELF{Entry: uint32(f.Entry)}

	symbols, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	bySymbol := make(map[string]uint32, len(symbols))
	for _, sym := range symbols {
		if heapSymbols[sym.Name] {
			e.UsesHeap = true
		}
		bySymbol[sym.Name] = uint32(sym.Value)
	}

	if err := e.findStackPointer(f, bySymbol); err != nil {
		return nil, err
	}

	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Flags&elf.SHF_WRITE == 0 || s.Size == 0 {
			continue
		}
		// Linker-reserved stack and heap space is not static data.
		name := strings.ToLower(s.Name)
		if strings.Contains(name, "stack") || strings.Contains(name, "heap") {
			continue
		}
		e.Static = append(e.Static, Section{Name: s.Name, Address: uint32(s.Addr), Size: uint32(s.Size)})
	}
	sort.Slice(e.Static, func(i, j int) bool { return e.Static[i].Address < e.Static[j].Address })

	return e, nil
}

func (e *ELF) findStackPointer(f *elf.File, symbols map[string]uint32) error {
	for _, name := range vectorTableSections {
		s := f.Section(name)
		if s == nil || s.Type != elf.SHT_PROGBITS || s.Size < 4 {
			continue
		}
		word := make([]byte, 4)
		if _, err := s.ReadAt(word, 0); err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		e.InitialStackPointer = binary.LittleEndian.Uint32(word)
		e.StackPointerSource = name
		return nil
	}

	for _, name := range stackPointerSymbols {
		if sp, ok := symbols[name]; ok {
			e.InitialStackPointer = sp
			e.StackPointerSource = name
			return nil
		}
	}

	return fmt.Errorf("no vector table (%s) or stack symbol (%s) found",
		strings.Join(vectorTableSections, ", "), strings.Join(stackPointerSymbols, ", "))
}

// Program returns the program metadata consumed by the canary.
func (e *ELF) Program() target.Program {
	return target.Program{
		InitialStackPointer: e.InitialStackPointer,
		UsesHeap:            e.UsesHeap,
	}
}

// StackInfo returns the unused stack range inside ram: from the end of the
// highest static section below the initial stack pointer, rounded up to a
// word, to the initial stack pointer. It returns nil if the initial stack
// pointer is not inside ram or the range is empty.
func (e *ELF) StackInfo(ram target.Region) *target.StackInfo {
	sp := e.InitialStackPointer
	if sp <= ram.Start || uint64(sp) > ram.End() {
		return nil
	}

	start := uint64(ram.Start)
	dataBelow := false
	for _, s := range e.Static {
		if !ram.Contains(s.Address) {
			continue
		}
		if end := s.End(); end > start && end <= uint64(sp) {
			start = end
			dataBelow = true
		}
	}

	start = (start + 3) &^ 3
	if start >= uint64(sp) {
		return nil
	}

	return &target.StackInfo{
		Start:          uint32(start),
		End:            sp,
		DataBelowStack: dataBelow,
	}
}

// Info returns the target layout of the program in ram.
func (e *ELF) Info(ram target.Region) target.Info {
	return target.Info{Stack: e.StackInfo(ram)}
}
