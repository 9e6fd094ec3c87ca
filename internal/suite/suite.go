// Package suite discovers test units and assembles them into an
// executable suite.
//
// Units are declared in YAML manifests spread through the working tree.
// A build either takes every discovered unit or resolves an explicit list
// of labels against them; programmatically supplied extra units are
// appended verbatim.
package suite

import "strings"

// Probe is one step of a unit's payload. The orchestrator carries probes
// opaquely; the unit runner interprets them. Exactly one of Exec or Query
// is set: Exec runs a statement against the named store, Query runs a
// single-integer query compared against Want.
type Probe struct {
	Store string `yaml:"store"`
	Exec  string `yaml:"exec,omitempty"`
	Query string `yaml:"query,omitempty"`
	Want  *int64 `yaml:"want,omitempty"`
}

// Unit is one runnable test unit.
type Unit struct {
	// Module, Group, and Name position the unit in the label namespace.
	Module string
	Group  string
	Name   string

	// Apps is the unit's scope declaration: the applications it is allowed
	// to touch. nil means no scope, which selects the full-flush reset policy.
	Apps []string

	// Skip marks the unit skipped, with the reason.
	Skip string

	// Probes is the runner payload.
	Probes []Probe

	// Dir is the slash-separated directory of the declaring manifest,
	// relative to the discovery root ("." at the root). Empty for units
	// supplied programmatically.
	Dir string
}

// FQN returns the unit's fully qualified name.
func (u Unit) FQN() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.Module, u.Group, u.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// Suite is an ordered collection of units ready to execute.
type Suite struct {
	Units []Unit
}

// Len returns the number of units.
func (s *Suite) Len() int {
	return len(s.Units)
}
