// Package run drives one test run from environment setup through store
// provisioning and suite execution to the final report.
//
// The controller owns the run's state machine and talks to every other
// subsystem through a small interface; the executor owns the unit loop.
// Both are good for exactly one run.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/testrig/internal/lifecycle"
	"github.com/roach88/testrig/internal/suite"
)

// Environment is the global setup/teardown pair around a run. Both hooks
// are idempotent and called exactly once per run, teardown regardless of
// how early the run died.
type Environment interface {
	GlobalSetup(ctx context.Context) error
	GlobalTeardown(ctx context.Context) error
}

// SuiteSource builds the ordered suite from labels and extra units.
type SuiteSource interface {
	Build(labels []string, extra []suite.Unit) (*suite.Suite, error)
}

// StoreManager provisions the run's stores and releases them again.
type StoreManager interface {
	Provision(ctx context.Context) (*lifecycle.Record, error)
	Teardown(ctx context.Context, rec *lifecycle.Record) error
}

// SuiteRunner executes a built suite against provisioned stores. Unit
// outcomes are data in the Result; the error is reserved for
// infrastructure failures that ended the loop early.
type SuiteRunner interface {
	Run(ctx context.Context, s *suite.Suite, rec *lifecycle.Record) (Result, error)
}

// Clock supplies run timing; tests swap in a deterministic one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures one run.
type Options struct {
	// Labels select units; nil selects everything discovered.
	Labels []string

	// Extra units are appended verbatim after selection.
	Extra []suite.Unit

	// Failfast stops launching units after the first failed or errored
	// one. The executor honors it; see NewExecutor.
	Failfast bool

	// KeepStores leaves provisioned stores standing for inspection
	// instead of tearing them down.
	KeepStores bool

	// RunID names the run in logs and the report.
	RunID string
}

// Controller drives one run through its states. Not safe for concurrent
// use; a second Run on the same controller fails with *ReentryError.
type Controller struct {
	env    Environment
	source SuiteSource
	stores StoreManager
	runner SuiteRunner
	opts   Options
	clock  Clock
	state  State
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock replaces the wall clock used for run timing.
func WithClock(c Clock) ControllerOption {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// NewController wires a controller from its collaborators.
func NewController(env Environment, source SuiteSource, stores StoreManager, runner SuiteRunner, opts Options, ctlOpts ...ControllerOption) *Controller {
	c := &Controller{
		env:    env,
		source: source,
		stores: stores,
		runner: runner,
		opts:   opts,
		clock:  systemClock{},
	}
	for _, opt := range ctlOpts {
		opt(c)
	}
	return c
}

// State returns the controller's current phase.
func (c *Controller) State() State {
	return c.state
}

// Run drives the full lifecycle and always comes back with a report, even
// when it also returns an error. A failure before Executing short-circuits
// to the teardown phases; the environment comes down exactly once no
// matter how early the run died, and stores come down whenever
// provisioning produced a record, unless Options.KeepStores.
//
// The returned error is the fatal configuration, provisioning, or
// execution error, if any. Teardown failures are demoted to report
// warnings so they never mask it.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	if c.state != Idle {
		return nil, &ReentryError{State: c.state}
	}

	start := c.clock.Now()
	slog.Info("run starting", "run", c.opts.RunID, "labels", len(c.opts.Labels))

	rec, result, fatal := c.execute(ctx)
	reached := c.state

	rep := &Report{
		RunID:   c.opts.RunID,
		Result:  result,
		Outcome: result.ExitCode(),
	}
	if fatal != nil {
		rep.Fatal = fatal.Error()
	}

	// Teardown proceeds on a context detached from cancellation so an
	// interrupt mid-run still cleans up.
	c.teardown(context.WithoutCancel(ctx), rec, rep)

	c.state = Reported
	if fatal == nil {
		rep.State = c.state.String()
	} else {
		rep.State = reached.String()
	}
	rep.Duration = c.clock.Now().Sub(start)

	slog.Info("run finished",
		"run", c.opts.RunID,
		"outcome", rep.Outcome,
		"passed", result.Passed,
		"failed", result.Failed,
		"errored", result.Errored,
		"skipped", result.Skipped,
		"duration", rep.Duration)
	return rep, fatal
}

// execute walks the forward states until the suite has run or a phase has
// failed. It hands back whatever record provisioning produced so teardown
// can release it.
func (c *Controller) execute(ctx context.Context) (*lifecycle.Record, Result, error) {
	if err := c.env.GlobalSetup(ctx); err != nil {
		return nil, Result{}, fmt.Errorf("environment setup: %w", err)
	}
	c.state = EnvironmentUp

	c.state = Discovering
	s, err := c.source.Build(c.opts.Labels, c.opts.Extra)
	if err != nil {
		return nil, Result{}, fmt.Errorf("building suite: %w", err)
	}
	c.state = SuiteBuilt
	slog.Info("suite built", "units", s.Len())

	rec, err := c.stores.Provision(ctx)
	if err != nil {
		return nil, Result{}, fmt.Errorf("provisioning stores: %w", err)
	}
	c.state = StoresUp
	slog.Info("stores provisioned", "stores", len(rec.Entries))

	c.state = Executing
	result, err := c.runner.Run(ctx, s, rec)
	if err != nil {
		return rec, result, fmt.Errorf("executing suite: %w", err)
	}
	return rec, result, nil
}

// teardown walks the two teardown phases, collecting failures into the
// report as warnings. It never returns an error: the run's outcome is
// already decided.
func (c *Controller) teardown(ctx context.Context, rec *lifecycle.Record, rep *Report) {
	if rec != nil {
		rep.Stores = summarize(rec, c.opts.KeepStores)
		if c.opts.KeepStores {
			slog.Info("keeping stores", "stores", len(rec.Entries))
		} else if err := c.stores.Teardown(ctx, rec); err != nil {
			var td *lifecycle.TeardownError
			if errors.As(err, &td) {
				for _, f := range td.Failures {
					rep.TeardownWarnings = append(rep.TeardownWarnings,
						fmt.Sprintf("store %s: %v", f.Store, f.Err))
				}
			} else {
				rep.TeardownWarnings = append(rep.TeardownWarnings, err.Error())
			}
		}
	}
	c.state = StoresDown

	if err := c.env.GlobalTeardown(ctx); err != nil {
		rep.TeardownWarnings = append(rep.TeardownWarnings,
			fmt.Sprintf("environment teardown: %v", err))
	}
	c.state = EnvironmentDown
}

// summarize flattens the record into report rows.
func summarize(rec *lifecycle.Record, kept bool) []StoreSummary {
	summaries := make([]StoreSummary, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		mode := StoreCreated
		switch {
		case !e.Owned():
			mode = StoreMirrored
		case kept:
			mode = StoreKept
		}
		summaries = append(summaries, StoreSummary{Name: e.Name, Mode: mode, Tables: len(e.Tables)})
	}
	return summaries
}
