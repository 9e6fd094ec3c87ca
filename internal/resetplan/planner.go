// Package resetplan decides how much state to wipe between test units.
//
// The default policy is a full flush: every table of every store is
// truncated and the baseline fixture rows are regenerated before every
// unit. A unit that declares a scope, the set of applications it touches,
// gets a cheaper plan: only tables belonging to in-scope applications are
// truncated, and fixtures are regenerated once per scope activation
// instead of once per unit.
//
// The optimization leaks: rows created in a schema outside the active
// scope are not cleaned between units and can affect later units. That
// leak is what makes scoped runs cheap, so the planner preserves it
// rather than detecting or repairing it.
package resetplan

import (
	"sort"
	"strings"
)

// Store is the planner's view of one provisioned store: its name, its
// table inventory, and whether its spec asked for a sequence reset.
type Store struct {
	Name           string
	Tables         []string
	ResetSequences bool
}

// StoreReset lists the tables to truncate in one store, sorted.
type StoreReset struct {
	Store  string
	Tables []string
}

// Plan is the reset work to apply before one unit.
type Plan struct {
	Stores []StoreReset

	// RegenerateFixtures asks the caller to replay the baseline fixture
	// rows after truncating. Always set under the full-flush policy; set
	// once per activation under a scope.
	RegenerateFixtures bool
}

// AppOf returns the application owning a table: the name segment before
// the first underscore, or the whole name when there is none.
func AppOf(table string) string {
	if i := strings.IndexByte(table, '_'); i > 0 {
		return table[:i]
	}
	return table
}

// Planner tracks the active scope across the units of one run. Not safe
// for concurrent use; the unit loop is sequential.
type Planner struct {
	activeKey string
	activated bool
}

// NewPlanner returns a planner with no active scope.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan computes the reset work for a unit.
//
// A nil scope is the full-flush policy: truncate everything, regenerate
// fixtures, and forget any previously active scope (so the next scoped
// unit re-activates and regenerates). A non-nil scope truncates only
// tables whose application is in the scope; fixtures regenerate when the
// scope is first activated or differs from the previous unit's scope,
// order-insensitively, and not otherwise. Truncation may leave rows of
// out-of-scope schemas behind, so regenerating per-unit would be wasted
// work without restoring isolation anyway.
func (p *Planner) Plan(scope []string, stores []Store) Plan {
	if scope == nil {
		p.activeKey = ""
		p.activated = false
		return Plan{Stores: truncateAll(stores), RegenerateFixtures: true}
	}

	key := scopeKey(scope)
	regen := !p.activated || key != p.activeKey
	p.activeKey = key
	p.activated = true

	inScope := make(map[string]bool, len(scope))
	for _, app := range scope {
		inScope[app] = true
	}

	var resets []StoreReset
	for _, store := range stores {
		var tables []string
		for _, table := range store.Tables {
			if inScope[AppOf(table)] {
				tables = append(tables, table)
			}
		}
		if len(tables) == 0 {
			continue
		}
		sort.Strings(tables)
		resets = append(resets, StoreReset{Store: store.Name, Tables: tables})
	}
	return Plan{Stores: resets, RegenerateFixtures: regen}
}

// SequenceResets names the stores whose sequences should be reset, in
// record order. The reset is expensive; the caller applies it once before
// the first unit of the run and never per-unit.
func (p *Planner) SequenceResets(stores []Store) []string {
	var names []string
	for _, store := range stores {
		if store.ResetSequences {
			names = append(names, store.Name)
		}
	}
	return names
}

func truncateAll(stores []Store) []StoreReset {
	var resets []StoreReset
	for _, store := range stores {
		if len(store.Tables) == 0 {
			continue
		}
		tables := make([]string, len(store.Tables))
		copy(tables, store.Tables)
		sort.Strings(tables)
		resets = append(resets, StoreReset{Store: store.Name, Tables: tables})
	}
	return resets
}

func scopeKey(scope []string) string {
	apps := make([]string, len(scope))
	copy(apps, scope)
	sort.Strings(apps)
	return strings.Join(apps, "\x1f")
}
