package sqlite

import (
	"context"
	"log/slog"

	"github.com/roach88/testrig/internal/lifecycle"
	"github.com/roach88/testrig/internal/run"
	"github.com/roach88/testrig/internal/suite"
)

// ProbeRunner executes a unit's probes against the record's stores. An
// exec probe runs its statement; a query probe scans a single integer and
// compares it to want. The first probe error makes the unit errored, the
// first missed want makes it failed, and a unit with a skip reason never
// touches a store.
type ProbeRunner struct{}

var _ run.UnitRunner = ProbeRunner{}

// RunUnit classifies one unit.
func (ProbeRunner) RunUnit(ctx context.Context, u suite.Unit, rec *lifecycle.Record) run.Outcome {
	if u.Skip != "" {
		slog.Info("unit skipped", "unit", u.FQN(), "reason", u.Skip)
		return run.Skipped
	}

	for _, probe := range u.Probes {
		entry, ok := rec.Lookup(probe.Store)
		if !ok {
			slog.Error("probe names unknown store", "unit", u.FQN(), "store", probe.Store)
			return run.Errored
		}
		sh, ok := entry.Handle.(*storeHandle)
		if !ok {
			slog.Error("probe store has a foreign handle", "unit", u.FQN(), "store", probe.Store)
			return run.Errored
		}

		switch {
		case probe.Exec != "":
			if _, err := sh.db.ExecContext(ctx, probe.Exec); err != nil {
				slog.Error("probe exec failed", "unit", u.FQN(), "store", probe.Store, "error", err)
				return run.Errored
			}

		case probe.Query != "":
			var got int64
			if err := sh.db.QueryRowContext(ctx, probe.Query).Scan(&got); err != nil {
				slog.Error("probe query failed", "unit", u.FQN(), "store", probe.Store, "error", err)
				return run.Errored
			}
			if probe.Want != nil && got != *probe.Want {
				slog.Info("probe want missed", "unit", u.FQN(), "want", *probe.Want, "got", got)
				return run.Failed
			}
		}
	}
	return run.Passed
}
