// Package config provides user configuration and the chip catalog for
// probe-canary.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/probe-canary/config.yaml or $HOME/.config/probe-canary/config.yaml
//   - macOS: $HOME/.config/probe-canary/config.yaml
//   - Windows: %LOCALAPPDATA%\probe-canary\config.yaml
//
// A missing file is not an error; the built-in defaults apply.
//
// # File Format
//
//	version: 1
//	probe:
//	  gdb_path: gdb-multiarch
//	  openocd_host: localhost
//	  openocd_port: 3333
//	  timeout: 10s
//	canary:
//	  chip: nrf52840
//	  measure_stack: false
//
// # Precedence
//
// Command line flags override the file, which overrides the defaults:
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//	settings := registry.Settings()
//	if cmd.Flags().Changed("gdb-path") {
//	    settings.GDBPath = gdbPath
//	}
//
// # Chip Catalog
//
// RAM layouts of common Cortex-M parts are embedded in the binary:
//
//	chips, _ := config.LoadChips()
//	chip, err := chips.Chip("nrf52840")
//	ram, err := chip.RegionFor(elf.InitialStackPointer)
//
// # Thread Safety
//
// The global registry and the catalog use sync.Once for initialization.
// File writes are serialized by a mutex and are atomic.
package config
