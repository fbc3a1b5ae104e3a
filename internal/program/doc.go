// Package program extracts what the stack canary needs to know from a
// Cortex-M ELF executable.
//
// Only three facts are used:
//
//   - the initial stack pointer, taken from the first word of the vector
//     table, or from a linker symbol when no vector table section exists
//   - whether a heap allocator is linked in, which makes the region below
//     the stack unsafe to paint
//   - the allocated, writable sections (.data, .bss, .uninit and friends)
//     that bound the stack from below
//
// Example:
//
//	elf, err := program.Load("target/thumbv7em-none-eabihf/debug/app")
//	if err != nil {
//	    return err
//	}
//	ram, _ := chip.RAM()
//	info := elf.Info(ram)
package program
