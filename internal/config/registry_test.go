package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jannic/probe-run/internal/target"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "probe-canary") {
		t.Errorf("GetConfigDir() = %v, should contain 'probe-canary'", configDir)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join(dir, "probe-canary") {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, filepath.Join(dir, "probe-canary"))
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Probe == nil || reg.Canary == nil {
		t.Fatal("NewRegistry() sections should not be nil")
	}
	if reg.Settings() != DefaultSettings() {
		t.Errorf("NewRegistry().Settings() = %+v, want defaults", reg.Settings())
	}
}

func TestLoadFile_Missing(t *testing.T) {
	reg, err := LoadFile(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if reg.Version != 1 {
		t.Errorf("expected default registry, got version %d", reg.Version)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: 1
probe:
  gdb_path: gdb-multiarch
  openocd_port: 4444
  timeout: 12s
canary:
  chip: rp2040
  measure_stack: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	s := reg.Settings()
	if s.GDBPath != "gdb-multiarch" {
		t.Errorf("GDBPath = %v, want gdb-multiarch", s.GDBPath)
	}
	if s.OpenOCDHost != "localhost" {
		t.Errorf("OpenOCDHost = %v, want default localhost", s.OpenOCDHost)
	}
	if s.OpenOCDPort != 4444 {
		t.Errorf("OpenOCDPort = %v, want 4444", s.OpenOCDPort)
	}
	if s.Timeout != 12*time.Second {
		t.Errorf("Timeout = %v, want 12s", s.Timeout)
	}
	if s.Chip != "rp2040" || !s.MeasureStack {
		t.Errorf("unexpected canary settings: %+v", s)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad version", "version: 2\n", "unsupported config version"},
		{"bad yaml", "version: [1\n", "failed to parse"},
		{"bad duration", "version: 1\nprobe:\n  timeout: soon\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadFile() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.Probe.OpenOCDHost = "10.0.0.5"
	reg.Probe.Timeout = 3 * time.Second
	reg.Canary.Chip = "nrf52840"

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Settings() != reg.Settings() {
		t.Errorf("loaded settings = %+v, want %+v", loaded.Settings(), reg.Settings())
	}
}

func TestRegistrySettings_Nil(t *testing.T) {
	var reg *Registry
	if reg.Settings() != DefaultSettings() {
		t.Error("nil registry should yield defaults")
	}
}

func TestLoadChips(t *testing.T) {
	chips, err := LoadChips()
	if err != nil {
		t.Fatalf("LoadChips() error = %v", err)
	}

	names := chips.Names()
	if len(names) == 0 {
		t.Fatal("catalog is empty")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names() not sorted: %v", names)
			break
		}
	}

	chip, err := chips.Chip("nRF52840")
	if err != nil {
		t.Fatalf("Chip() error = %v", err)
	}
	ram, err := chip.RAM()
	if err != nil {
		t.Fatalf("RAM() error = %v", err)
	}
	want := target.Region{Name: "RAM", Start: 0x20000000, Size: 0x40000}
	if ram != want {
		t.Errorf("RAM() = %v, want %v", ram, want)
	}
}

func TestChip_Unknown(t *testing.T) {
	chips, err := LoadChips()
	if err != nil {
		t.Fatalf("LoadChips() error = %v", err)
	}

	_, err = chips.Chip("z80")
	var unknown *UnknownChipError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownChipError, got %v", err)
	}
	if !strings.Contains(err.Error(), "nrf52840") {
		t.Errorf("error should list known chips: %v", err)
	}
}

func TestChip_RegionFor(t *testing.T) {
	chips, err := LoadChips()
	if err != nil {
		t.Fatalf("LoadChips() error = %v", err)
	}
	chip, err := chips.Chip("stm32h743zi")
	if err != nil {
		t.Fatalf("Chip() error = %v", err)
	}

	tests := []struct {
		name string
		sp   uint32
		want string
	}{
		{"top of DTCM", 0x20020000, "DTCM"},
		{"inside AXI SRAM", 0x24040000, "AXI_SRAM"},
		{"top of AXI SRAM", 0x24080000, "AXI_SRAM"},
		{"outside RAM", 0x08000000, "DTCM"},
		{"zero", 0, "DTCM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := chip.RegionFor(tt.sp)
			if err != nil {
				t.Fatalf("RegionFor() error = %v", err)
			}
			if r.Name != tt.want {
				t.Errorf("RegionFor(%#x) = %s, want %s", tt.sp, r.Name, tt.want)
			}
		})
	}
}

func TestParseChips_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty region", "chips:\n  x:\n    ram:\n      - name: RAM\n        start: 0x20000000\n        size: 0\n"},
		{"wraps", "chips:\n  x:\n    ram:\n      - name: RAM\n        start: 0xffff0000\n        size: 0x20000\n"},
		{"null chip", "chips:\n  x:\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseChips([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestChip_NoRAM(t *testing.T) {
	chip := &Chip{Name: "empty"}
	if _, err := chip.RAM(); err == nil {
		t.Error("expected error for chip without RAM")
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}
