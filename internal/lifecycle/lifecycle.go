// Package lifecycle creates and destroys the stores of a run.
//
// The manager walks the provisioning steps produced by the topology
// package, asks a Provider for the physical work, and keeps an exact
// record of what it created so teardown releases precisely that: owned
// handles in reverse creation order, redirects never.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/testrig/internal/topology"
)

// Handle identifies a live store connection. Opaque to the orchestrator;
// only the Provider that issued it knows what is behind it.
type Handle interface {
	Name() string
}

// Provider is the schema/store collaborator. Implementations own
// connection management, schema migration, and the reset primitives; the
// orchestrator calls them as black boxes.
//
// CreateStore returns *ExistsError when a store with the spec's name
// already exists; the manager decides whether to clobber it. RemoveStore
// destroys such a pre-existing store by name, before any handle exists.
type Provider interface {
	CreateStore(ctx context.Context, spec topology.StoreSpec) (Handle, error)
	RemoveStore(ctx context.Context, name string) error
	DestroyStore(ctx context.Context, h Handle) error
	Tables(ctx context.Context, h Handle) ([]string, error)
	Truncate(ctx context.Context, h Handle, tables []string) error
	RegenerateFixtures(ctx context.Context, h Handle) error
	ResetSequences(ctx context.Context, h Handle) error
}

// Confirmer answers destructive-action prompts in interactive mode.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// Entry is one line of the provisioning record. Exactly one of two shapes
// holds: the entry owns its handle (MirrorOf empty), or it redirects to
// another entry's handle (MirrorOf names the target) and owns nothing.
type Entry struct {
	Name string

	// Handle is the store connection. For a redirect this is the target
	// entry's handle, shared, never released through this entry.
	Handle Handle

	// MirrorOf names the store this entry redirects to; empty for owned
	// entries.
	MirrorOf string

	// Tables is the table inventory captured at creation, used to plan
	// resets. Empty for redirects.
	Tables []string

	// ResetSequences carries the spec's sequence-reset request through to
	// the planner.
	ResetSequences bool

	released bool
}

// Owned reports whether the entry holds a handle that teardown must
// release.
func (e Entry) Owned() bool {
	return e.MirrorOf == ""
}

// Record is the exact account of one provisioning pass. It is owned by
// the run in progress; no other run may provision concurrently against
// the same stores.
type Record struct {
	Entries []Entry
}

// Lookup returns the entry for a store name.
func (r *Record) Lookup(name string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// OwnedCount returns how many entries hold their own handle.
func (r *Record) OwnedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Owned() {
			n++
		}
	}
	return n
}

// Manager provisions and tears down stores through a Provider.
type Manager struct {
	provider Provider
	confirm  Confirmer // nil means non-interactive: clobber without asking
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithInteractive makes the manager ask c before destroying a colliding
// store. Without this option collisions are destroyed unconditionally.
func WithInteractive(c Confirmer) ManagerOption {
	return func(m *Manager) {
		m.confirm = c
	}
}

// NewManager creates a Manager backed by p.
func NewManager(p Provider, opts ...ManagerOption) *Manager {
	m := &Manager{provider: p}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Provision executes steps strictly in order and returns the record of
// what exists afterwards.
//
// Any create failure rolls back every store created so far, in reverse
// order, before the error surfaces, so the caller never receives a
// partially-up environment. A declined collision prompt rolls back the
// same way and returns *UserAbortedError. Rollback is best-effort: destroy
// failures during rollback are logged and never mask the original error.
func (m *Manager) Provision(ctx context.Context, steps []topology.ProvisionStep) (*Record, error) {
	rec := &Record{Entries: make([]Entry, 0, len(steps))}

	for _, step := range steps {
		switch step.Kind {
		case topology.StepCreate:
			h, err := m.createStore(ctx, step.Spec)
			if err != nil {
				m.rollback(ctx, rec)
				return nil, err
			}
			rec.Entries = append(rec.Entries, Entry{
				Name:           step.Spec.Name,
				Handle:         h,
				ResetSequences: step.Spec.ResetSequences,
			})
			tables, err := m.provider.Tables(ctx, h)
			if err != nil {
				m.rollback(ctx, rec)
				return nil, &ProvisionError{Store: step.Spec.Name, Err: fmt.Errorf("listing tables: %w", err)}
			}
			rec.Entries[len(rec.Entries)-1].Tables = tables
			slog.Info("store created", "store", step.Spec.Name, "tables", len(tables))

		case topology.StepMirror:
			target, ok := rec.Lookup(step.Target)
			if !ok {
				m.rollback(ctx, rec)
				return nil, &ProvisionError{Store: step.Spec.Name, Err: fmt.Errorf("mirror target %q not provisioned yet", step.Target)}
			}
			rec.Entries = append(rec.Entries, Entry{
				Name:     step.Spec.Name,
				Handle:   target.Handle,
				MirrorOf: step.Target,
			})
			slog.Info("store mirrored", "store", step.Spec.Name, "target", step.Target)

		default:
			m.rollback(ctx, rec)
			return nil, &ProvisionError{Store: step.Spec.Name, Err: fmt.Errorf("unknown step kind %v", step.Kind)}
		}
	}

	return rec, nil
}

// createStore creates one store, clobbering a colliding one according to
// the interactive policy.
func (m *Manager) createStore(ctx context.Context, spec topology.StoreSpec) (Handle, error) {
	h, err := m.provider.CreateStore(ctx, spec)
	if err == nil {
		return h, nil
	}

	var exists *ExistsError
	if !errors.As(err, &exists) {
		return nil, &ProvisionError{Store: spec.Name, Err: err}
	}

	if m.confirm != nil {
		prompt := fmt.Sprintf("store %q already exists; destroy it and recreate?", spec.Name)
		ok, confirmErr := m.confirm.Confirm(prompt)
		if confirmErr != nil {
			return nil, &ProvisionError{Store: spec.Name, Err: fmt.Errorf("reading confirmation: %w", confirmErr)}
		}
		if !ok {
			return nil, &UserAbortedError{Store: spec.Name}
		}
	}

	slog.Warn("destroying colliding store", "store", spec.Name)
	if err := m.provider.RemoveStore(ctx, spec.Name); err != nil {
		return nil, &ProvisionError{Store: spec.Name, Err: fmt.Errorf("removing colliding store: %w", err)}
	}
	h, err = m.provider.CreateStore(ctx, spec)
	if err != nil {
		return nil, &ProvisionError{Store: spec.Name, Err: err}
	}
	return h, nil
}

// rollback destroys every owned store in rec in reverse creation order.
// Failures are logged and swallowed so the original error stays visible.
func (m *Manager) rollback(ctx context.Context, rec *Record) {
	for i := len(rec.Entries) - 1; i >= 0; i-- {
		e := rec.Entries[i]
		if !e.Owned() {
			continue
		}
		if err := m.provider.DestroyStore(ctx, e.Handle); err != nil {
			slog.Warn("rollback failed to destroy store", "store", e.Name, "error", err)
			continue
		}
		slog.Info("rolled back store", "store", e.Name)
	}
	rec.Entries = nil
}

// Teardown releases every owned handle in rec, newest first. Redirects
// are no-ops. Best-effort: a failure on one store is recorded and the
// rest are still attempted; the aggregate comes back as *TeardownError.
// Released entries are skipped, so a second call does nothing.
func (m *Manager) Teardown(ctx context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}

	var failures []StoreFailure
	for i := len(rec.Entries) - 1; i >= 0; i-- {
		e := &rec.Entries[i]
		if !e.Owned() || e.released {
			continue
		}
		if err := m.provider.DestroyStore(ctx, e.Handle); err != nil {
			slog.Warn("teardown failed to destroy store", "store", e.Name, "error", err)
			failures = append(failures, StoreFailure{Store: e.Name, Err: err})
			continue
		}
		e.released = true
		slog.Debug("store destroyed", "store", e.Name)
	}

	if len(failures) > 0 {
		return &TeardownError{Failures: failures}
	}
	return nil
}
