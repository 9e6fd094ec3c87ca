// Package topology orders store declarations for provisioning.
//
// A run declares a set of named stores. Stores may depend on each other
// (dependsOn) or redirect to another store's connection (mirrorOf). This
// package turns those declarations into a provisioning plan: a creation
// order that respects every dependency, with mirrors bound to the stores
// they shadow. It touches no store itself.
package topology

// StoreSpec declares a single store for a run.
//
// Specs are produced by the rig loader and are immutable for the run.
// Names are unique after Unicode normalization; the loader normalizes,
// and Resolve rejects duplicates itself for direct callers.
type StoreSpec struct {
	// Name uniquely identifies the store.
	Name string

	// Params holds provider-specific connection parameters. Opaque here.
	Params map[string]string

	// DependsOn lists stores that must exist before this one is created.
	// Ignored when MirrorOf is set: a mirror is ordered only relative to
	// its target.
	DependsOn []string

	// MirrorOf redirects this store to another store's live connection
	// instead of provisioning anything. Empty for ordinary stores.
	MirrorOf string

	// Schema and Fixtures are handed opaquely to the provider at creation:
	// Schema builds the tables, Fixtures seeds the baseline rows that a
	// reset regenerates.
	Schema   []string
	Fixtures []string

	// ResetSequences requests a one-time sequence reset for this store at
	// the start of a run. The operation is expensive and never runs
	// per-unit.
	ResetSequences bool
}

// IsMirror reports whether the spec redirects to another store.
func (s StoreSpec) IsMirror() bool {
	return s.MirrorOf != ""
}
