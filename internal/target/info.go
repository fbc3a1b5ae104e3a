package target

import "fmt"

// StackInfo describes the unused stack memory of a loaded program.
//
//	+--------+ -> initial stack pointer / End
//	| stack  | (grows downwards)
//	+--------+
//	| unused |
//	+--------+ -> Start
//	| static | (.data, .bss)
//	+--------+ -> lowest RAM address
type StackInfo struct {
	// Start is the lowest address of the unused stack range (inclusive).
	Start uint32 `yaml:"start"`

	// End is the highest address of the unused stack range (exclusive).
	End uint32 `yaml:"end"`

	// DataBelowStack is true if static data sits directly below Start.
	DataBelowStack bool `yaml:"data_below_stack"`
}

// Available returns the number of unused stack bytes.
func (s StackInfo) Available() uint32 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// String formats the range the way the log messages show it.
func (s StackInfo) String() string {
	return fmt.Sprintf("0x%08x..0x%08x", s.Start, s.End)
}

// Info is what is known about the target memory layout of a program.
type Info struct {
	// Stack is nil when the stack layout could not be determined.
	Stack *StackInfo
}

// Program is the metadata of the program loaded on the target.
type Program struct {
	// InitialStackPointer is the stack pointer value loaded at reset.
	InitialStackPointer uint32

	// UsesHeap is true if the program links a heap allocator.
	UsesHeap bool
}

// Region is a contiguous range of target memory.
type Region struct {
	Name  string `yaml:"name"`
	Start uint32 `yaml:"start"`
	Size  uint32 `yaml:"size"`
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Start) + uint64(r.Size)
}

// Contains reports whether address lies inside the region.
func (r Region) Contains(address uint32) bool {
	return address >= r.Start && uint64(address) < r.End()
}

// ContainsRange reports whether [address, address+length) lies inside the region.
func (r Region) ContainsRange(address uint32, length int) bool {
	if length < 0 {
		return false
	}
	return address >= r.Start && uint64(address)+uint64(length) <= r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("%s [0x%08x..0x%08x)", r.Name, r.Start, r.End())
}
