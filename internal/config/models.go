package config

import "time"

// Registry represents the entire user configuration file.
type Registry struct {
	Version int          `yaml:"version"`
	Probe   *ProbePrefs  `yaml:"probe,omitempty"`
	Canary  *CanaryPrefs `yaml:"canary,omitempty"`
}

// ProbePrefs holds how GDB reaches the target. Zero values mean "use the
// built-in default".
type ProbePrefs struct {
	GDBPath     string        `yaml:"gdb_path,omitempty"`     // e.g. "gdb-multiarch"
	OpenOCDHost string        `yaml:"openocd_host,omitempty"` // OpenOCD GDB server host
	OpenOCDPort int           `yaml:"openocd_port,omitempty"` // OpenOCD GDB server port
	Timeout     time.Duration `yaml:"timeout,omitempty"`      // e.g. "5s"
}

// CanaryPrefs holds defaults for the paint and check commands.
type CanaryPrefs struct {
	Chip         string `yaml:"chip,omitempty"` // chip catalog name
	MeasureStack bool   `yaml:"measure_stack,omitempty"`
}

// Settings is the effective configuration once file values have been laid
// over the built-in defaults.
type Settings struct {
	GDBPath      string
	OpenOCDHost  string
	OpenOCDPort  int
	Timeout      time.Duration
	Chip         string
	MeasureStack bool
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		GDBPath:     "arm-none-eabi-gdb",
		OpenOCDHost: "localhost",
		OpenOCDPort: 3333,
		Timeout:     5 * time.Second,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Probe:   &ProbePrefs{},
		Canary:  &CanaryPrefs{},
	}
}

// Settings returns the defaults overridden by every value set in the file.
func (r *Registry) Settings() Settings {
	s := DefaultSettings()
	if r == nil {
		return s
	}

	if p := r.Probe; p != nil {
		if p.GDBPath != "" {
			s.GDBPath = p.GDBPath
		}
		if p.OpenOCDHost != "" {
			s.OpenOCDHost = p.OpenOCDHost
		}
		if p.OpenOCDPort != 0 {
			s.OpenOCDPort = p.OpenOCDPort
		}
		if p.Timeout > 0 {
			s.Timeout = p.Timeout
		}
	}

	if c := r.Canary; c != nil {
		s.Chip = c.Chip
		s.MeasureStack = c.MeasureStack
	}

	return s
}
