package run

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/testrig/internal/lifecycle"
	"github.com/roach88/testrig/internal/resetplan"
	"github.com/roach88/testrig/internal/suite"
)

// UnitRunner executes one unit against the provisioned stores and
// classifies what happened. Probe semantics, skipping, and any
// parallelism inside a unit are the runner's business.
type UnitRunner interface {
	RunUnit(ctx context.Context, u suite.Unit, rec *lifecycle.Record) Outcome
}

// Executor is the sequential unit loop. Before every unit it asks the
// planner for a reset plan scoped to the unit's Apps and applies it
// through the provider; sequence resets run once, before the first unit.
//
// An executor is good for one run: its planner carries scope state
// across units.
type Executor struct {
	planner  *resetplan.Planner
	provider lifecycle.Provider
	units    UnitRunner
	failfast bool
}

var _ SuiteRunner = (*Executor)(nil)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithFailfast stops the loop after the first failed or errored unit;
// the remainder counts as skipped.
func WithFailfast(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.failfast = enabled
	}
}

// NewExecutor wires an executor for one run.
func NewExecutor(provider lifecycle.Provider, units UnitRunner, opts ...ExecutorOption) *Executor {
	e := &Executor{
		planner:  resetplan.NewPlanner(),
		provider: provider,
		units:    units,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every unit in order and tallies the outcomes.
//
// Unit failures are data, not errors: the returned error is non-nil only
// when infrastructure ended the loop early, a reset that would not apply
// or a canceled context. The Result still accounts for every unit, the
// unexecuted remainder as skipped.
func (e *Executor) Run(ctx context.Context, s *suite.Suite, rec *lifecycle.Record) (Result, error) {
	stores := storeInventory(rec)

	var res Result
	for _, name := range e.planner.SequenceResets(stores) {
		entry, _ := rec.Lookup(name)
		if err := e.provider.ResetSequences(ctx, entry.Handle); err != nil {
			res.Skipped = s.Len()
			return res, fmt.Errorf("resetting sequences on %s: %w", name, err)
		}
		slog.Debug("sequences reset", "store", name)
	}

	for i, u := range s.Units {
		if err := ctx.Err(); err != nil {
			res.Skipped += s.Len() - i
			slog.Warn("run canceled, skipping remaining units", "skipped", s.Len()-i)
			return res, err
		}
		if e.failfast && res.Failed+res.Errored > 0 {
			res.Skipped += s.Len() - i
			slog.Info("failfast, skipping remaining units", "skipped", s.Len()-i)
			break
		}

		if err := e.applyPlan(ctx, e.planner.Plan(u.Apps, stores), rec); err != nil {
			res.Skipped += s.Len() - i
			return res, err
		}

		outcome := e.units.RunUnit(ctx, u, rec)
		res.Add(outcome)
		slog.Info("unit finished", "unit", u.FQN(), "outcome", outcome)
	}
	return res, nil
}

// applyPlan truncates per the plan and replays fixtures on exactly the
// stores the plan touched.
func (e *Executor) applyPlan(ctx context.Context, plan resetplan.Plan, rec *lifecycle.Record) error {
	for _, reset := range plan.Stores {
		entry, ok := rec.Lookup(reset.Store)
		if !ok {
			return fmt.Errorf("reset plan names unknown store %q", reset.Store)
		}
		if err := e.provider.Truncate(ctx, entry.Handle, reset.Tables); err != nil {
			return fmt.Errorf("truncating %s: %w", reset.Store, err)
		}
	}
	if plan.RegenerateFixtures {
		for _, reset := range plan.Stores {
			entry, _ := rec.Lookup(reset.Store)
			if err := e.provider.RegenerateFixtures(ctx, entry.Handle); err != nil {
				return fmt.Errorf("regenerating fixtures on %s: %w", reset.Store, err)
			}
		}
	}
	return nil
}

// storeInventory is the planner's view of the record: owned entries only,
// since a mirror shares its target's physical store and resetting through
// both would double the work.
func storeInventory(rec *lifecycle.Record) []resetplan.Store {
	var stores []resetplan.Store
	for _, entry := range rec.Entries {
		if !entry.Owned() {
			continue
		}
		stores = append(stores, resetplan.Store{
			Name:           entry.Name,
			Tables:         entry.Tables,
			ResetSequences: entry.ResetSequences,
		})
	}
	return stores
}
