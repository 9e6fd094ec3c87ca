package suite

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is one unit-declaration file.
type Manifest struct {
	// Module is the dotted module path all units in this file live under.
	Module string `yaml:"module"`

	// Groups holds the unit groups in declaration order.
	Groups []ManifestGroup `yaml:"groups"`
}

// ManifestGroup is a named group of units.
type ManifestGroup struct {
	Name  string         `yaml:"name"`
	Units []ManifestUnit `yaml:"units"`
}

// ManifestUnit is one declared unit.
type ManifestUnit struct {
	Name   string   `yaml:"name"`
	Apps   []string `yaml:"apps,omitempty"`
	Skip   string   `yaml:"skip,omitempty"`
	Probes []Probe  `yaml:"probes,omitempty"`
}

// LoadManifest reads and parses a unit manifest. Unknown fields are
// rejected so typos fail loudly instead of silently dropping units.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// validateManifest checks that required fields are present and that every
// probe has exactly one action.
func validateManifest(m *Manifest) error {
	if m.Module == "" {
		return fmt.Errorf("module is required")
	}
	if len(m.Groups) == 0 {
		return fmt.Errorf("groups list is required and must be non-empty")
	}

	for gi, group := range m.Groups {
		if group.Name == "" {
			return fmt.Errorf("groups[%d]: name is required", gi)
		}
		if len(group.Units) == 0 {
			return fmt.Errorf("groups[%d] (%s): units list is required and must be non-empty", gi, group.Name)
		}
		for ui, unit := range group.Units {
			if unit.Name == "" {
				return fmt.Errorf("groups[%d].units[%d]: name is required", gi, ui)
			}
			for pi, probe := range unit.Probes {
				if err := validateProbe(&probe); err != nil {
					return fmt.Errorf("groups[%d].units[%d].probes[%d]: %w", gi, ui, pi, err)
				}
			}
		}
	}
	return nil
}

func validateProbe(p *Probe) error {
	if p.Store == "" {
		return fmt.Errorf("store is required")
	}
	switch {
	case p.Exec != "" && p.Query != "":
		return fmt.Errorf("exec and query are mutually exclusive")
	case p.Exec == "" && p.Query == "":
		return fmt.Errorf("one of exec or query is required")
	case p.Query != "" && p.Want == nil:
		return fmt.Errorf("want is required with query")
	case p.Exec != "" && p.Want != nil:
		return fmt.Errorf("want is only valid with query")
	}
	return nil
}
