package canary

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan describes an installed canary. It is created by Install before the
// program runs and consumed once by Check after the core halted. It records
// where the painted region is; it does not own target memory.
type Plan struct {
	// ID correlates the plan with the logs of the session that created it.
	ID string `yaml:"id"`

	// Address is the start of the painted region.
	Address uint32 `yaml:"address"`

	// Size is the number of painted bytes.
	Size uint32 `yaml:"size"`

	// StackAvailable is the unused stack capacity when the canary was installed.
	StackAvailable uint32 `yaml:"stack_available"`

	// DataBelowStack is true if static data sits directly below the canary.
	DataBelowStack bool `yaml:"data_below_stack"`

	// MeasureStack selects usage measurement instead of overflow detection.
	MeasureStack bool `yaml:"measure_stack"`

	// InstalledAt is when painting started.
	InstalledAt time.Time `yaml:"installed_at"`
}

// End returns the first address past the painted region.
func (p *Plan) End() uint32 {
	return p.Address + p.Size
}

// Validate checks the invariants of a plan.
func (p *Plan) Validate() error {
	if p.Address%Alignment != 0 {
		return &PreconditionError{Field: "address", Value: p.Address, Reason: "must be 4-byte aligned"}
	}
	if p.Size%Alignment != 0 {
		return &PreconditionError{Field: "size", Value: p.Size, Reason: "must be 4-byte aligned"}
	}
	if p.Size < PaintSubroutineLength {
		return &PreconditionError{Field: "size", Value: p.Size, Reason: "region is too small to host the paint subroutine"}
	}
	if p.Size > p.StackAvailable {
		return &PreconditionError{Field: "size", Value: p.Size,
			Reason: fmt.Sprintf("exceeds the %d bytes of available stack", p.StackAvailable)}
	}
	if uint64(p.Address)+uint64(p.Size) > 1<<32 {
		return &PreconditionError{Field: "size", Value: p.Size, Reason: "region wraps around the address space"}
	}
	return nil
}

func (p *Plan) String() string {
	mode := "overflow detection"
	if p.MeasureStack {
		mode = "stack measurement"
	}
	return fmt.Sprintf("%d byte canary at 0x%08x (%s)", p.Size, p.Address, mode)
}

// SavePlan writes plan to path as YAML, replacing any existing file.
func SavePlan(path string, plan *Plan) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal canary plan: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".canary-plan-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write canary plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write canary plan: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save canary plan: %w", err)
	}
	return nil
}

// LoadPlan reads and validates a plan written by SavePlan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read canary plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse canary plan %s: %w", path, err)
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("canary plan %s is invalid: %w", path, err)
	}

	return &plan, nil
}
