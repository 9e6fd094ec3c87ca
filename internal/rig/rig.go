// Package rig loads the run configuration: the stores to provision, the
// primary store, the optional application registry, and the discovery
// pattern. Rigs are CUE files; see Load.
package rig

import (
	"github.com/roach88/testrig/internal/topology"
)

// DefaultPrimary is the primary store name when the rig does not set one.
const DefaultPrimary = "default"

// Rig is a fully loaded, validated run configuration. Immutable for the
// run.
type Rig struct {
	// Primary names the distinguished store every other store implicitly
	// depends on.
	Primary string

	// Pattern is the unit-manifest discovery glob. Empty means the
	// builder's default.
	Pattern string

	// Apps is the application registry for scope validation. nil disables
	// validation; an empty non-nil registry rejects every scoped unit.
	Apps []string

	// Stores holds the store declarations in file order.
	Stores []topology.StoreSpec
}

// validate applies the semantic checks that need the whole rig: store
// presence, name uniqueness, the primary's existence, and mirror shape.
// Ordering problems (cycles, mirror order) stay with the topology package,
// which sees the resolved graph.
func (r *Rig) validate(file string) error {
	if len(r.Stores) == 0 {
		return &CompileError{File: file, Field: "stores", Message: "stores list is required and must be non-empty"}
	}

	seen := make(map[string]bool, len(r.Stores))
	primaryDeclared := false
	for _, s := range r.Stores {
		if seen[s.Name] {
			return &CompileError{File: file, Field: "stores", Message: "store " + quote(s.Name) + " is declared more than once"}
		}
		seen[s.Name] = true
		if s.Name == r.Primary {
			primaryDeclared = true
			if s.IsMirror() {
				return &CompileError{File: file, Field: "stores", Message: "primary store " + quote(s.Name) + " cannot be a mirror"}
			}
		}
		if s.IsMirror() && (len(s.Schema) > 0 || len(s.Fixtures) > 0) {
			return &CompileError{File: file, Field: "stores", Message: "mirror store " + quote(s.Name) + " cannot declare schema or fixtures"}
		}
	}
	if !primaryDeclared {
		return &CompileError{File: file, Field: "primary", Message: "primary store " + quote(r.Primary) + " is not declared; declare it or set primary"}
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}
