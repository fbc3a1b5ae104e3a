package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jannic/probe-run/internal/target"
	"gopkg.in/yaml.v3"
)

//go:embed chips.yaml
var chipsYAML []byte

// Chip is the RAM layout of one microcontroller.
type Chip struct {
	// Name is the catalog key (e.g., "nrf52840")
	Name string `yaml:"-"`

	// Description is the human-readable part name
	Description string `yaml:"description"`

	// Memory lists the RAM regions, primary region first
	Memory []target.Region `yaml:"ram"`
}

// RAM returns the primary RAM region.
func (c *Chip) RAM() (target.Region, error) {
	if len(c.Memory) == 0 {
		return target.Region{}, fmt.Errorf("chip %s has no RAM regions", c.Name)
	}
	return c.Memory[0], nil
}

// RegionFor returns the RAM region holding the stack that starts at sp.
// The initial stack pointer points one past the top of the stack, so the
// region containing sp-1 is chosen. Falls back to the primary region.
func (c *Chip) RegionFor(sp uint32) (target.Region, error) {
	if sp > 0 {
		for _, r := range c.Memory {
			if r.Contains(sp - 1) {
				return r, nil
			}
		}
	}
	return c.RAM()
}

// ChipCatalog holds the embedded chip descriptions.
type ChipCatalog struct {
	chips map[string]*Chip
}

type chipCatalogContainer struct {
	Chips map[string]*Chip `yaml:"chips"`
}

var (
	globalCatalog     *ChipCatalog
	globalCatalogOnce sync.Once
	globalCatalogErr  error
)

// LoadChips parses the embedded chip catalog. Safe to call repeatedly; the
// catalog is parsed once.
func LoadChips() (*ChipCatalog, error) {
	globalCatalogOnce.Do(func() {
		globalCatalog, globalCatalogErr = parseChips(chipsYAML)
	})
	return globalCatalog, globalCatalogErr
}

func parseChips(data []byte) (*ChipCatalog, error) {
	var container chipCatalogContainer
	if err := yaml.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to parse chip catalog: %w", err)
	}

	catalog := &ChipCatalog{chips: make(map[string]*Chip, len(container.Chips))}
	for name, chip := range container.Chips {
		if chip == nil {
			return nil, fmt.Errorf("chip %s has no description", name)
		}
		chip.Name = name
		for _, r := range chip.Memory {
			if r.Size == 0 {
				return nil, fmt.Errorf("chip %s: region %s is empty", name, r.Name)
			}
			if r.End() > 1<<32 {
				return nil, fmt.Errorf("chip %s: region %s exceeds the address space", name, r.Name)
			}
		}
		catalog.chips[strings.ToLower(name)] = chip
	}

	return catalog, nil
}

// Chip looks up a chip by name, case-insensitively.
func (c *ChipCatalog) Chip(name string) (*Chip, error) {
	chip, ok := c.chips[strings.ToLower(name)]
	if !ok {
		return nil, &UnknownChipError{Name: name, Known: c.Names()}
	}
	return chip, nil
}

// Names returns all chip names in sorted order.
func (c *ChipCatalog) Names() []string {
	names := make([]string, 0, len(c.chips))
	for name := range c.chips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownChipError is returned for a chip missing from the catalog.
type UnknownChipError struct {
	Name  string
	Known []string
}

func (e *UnknownChipError) Error() string {
	return fmt.Sprintf("unknown chip %q\n"+
		"Known chips: %s\n"+
		"Hint: Use --ram-start and --ram-size to describe the RAM directly",
		e.Name, strings.Join(e.Known, ", "))
}
