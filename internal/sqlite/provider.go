// Package sqlite is the reference store provider: one SQLite database
// file per store, all inside the run's workspace directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/testrig/internal/lifecycle"
	"github.com/roach88/testrig/internal/topology"
)

// Provider provisions file-backed SQLite stores inside a workspace. The
// workspace must be set up before the first CreateStore call; the
// controller guarantees that ordering.
//
// Store files are named by the spec's params["file"] when present, else
// "<name>.db".
type Provider struct {
	ws    *Workspace
	specs map[string]topology.StoreSpec
}

var _ lifecycle.Provider = (*Provider)(nil)

// NewProvider creates a provider for the given workspace and store specs.
func NewProvider(ws *Workspace, specs []topology.StoreSpec) *Provider {
	byName := make(map[string]topology.StoreSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}
	return &Provider{ws: ws, specs: byName}
}

// storeHandle is the live connection to one store file.
type storeHandle struct {
	name string
	path string
	db   *sql.DB
}

func (h *storeHandle) Name() string { return h.name }

// Path returns the database file behind the handle.
func (h *storeHandle) Path() string { return h.path }

// CreateStore creates the store file, applies pragmas and the spec's
// schema, and loads its fixtures. A file already at the store's path is a
// collision: *lifecycle.ExistsError comes back and nothing is touched.
func (p *Provider) CreateStore(ctx context.Context, spec topology.StoreSpec) (lifecycle.Handle, error) {
	path := p.storePath(spec.Name, spec)

	if _, err := os.Stat(path); err == nil {
		return nil, &lifecycle.ExistsError{Name: spec.Name}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking store file: %w", err)
	}

	db, err := open(path)
	if err != nil {
		return nil, err
	}

	for _, stmt := range spec.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			removeStoreFiles(path)
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	for _, stmt := range spec.Fixtures {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			removeStoreFiles(path)
			return nil, fmt.Errorf("loading fixtures: %w", err)
		}
	}

	return &storeHandle{name: spec.Name, path: path, db: db}, nil
}

// RemoveStore deletes a pre-existing store file by name, before any
// handle to it exists. Used to clobber collisions.
func (p *Provider) RemoveStore(ctx context.Context, name string) error {
	spec, ok := p.specs[name]
	if !ok {
		return fmt.Errorf("unknown store %q", name)
	}
	return removeStoreFiles(p.storePath(name, spec))
}

// DestroyStore closes the handle's connection and deletes its files.
func (p *Provider) DestroyStore(ctx context.Context, h lifecycle.Handle) error {
	sh, err := p.handle(h)
	if err != nil {
		return err
	}
	if err := sh.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return removeStoreFiles(sh.path)
}

// Tables lists the store's tables, sorted. SQLite's internal sequence
// table is not part of the inventory.
func (p *Provider) Tables(ctx context.Context, h lifecycle.Handle) ([]string, error) {
	sh, err := p.handle(h)
	if err != nil {
		return nil, err
	}

	rows, err := sh.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name != 'sqlite_sequence' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Truncate deletes every row of the given tables.
func (p *Provider) Truncate(ctx context.Context, h lifecycle.Handle, tables []string) error {
	sh, err := p.handle(h)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := sh.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", table)); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
	}
	return nil
}

// RegenerateFixtures replays the spec's fixture statements.
func (p *Provider) RegenerateFixtures(ctx context.Context, h lifecycle.Handle) error {
	sh, err := p.handle(h)
	if err != nil {
		return err
	}
	spec, ok := p.specs[sh.name]
	if !ok {
		return fmt.Errorf("unknown store %q", sh.name)
	}
	for _, stmt := range spec.Fixtures {
		if _, err := sh.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("replaying fixture: %w", err)
		}
	}
	return nil
}

// ResetSequences clears SQLite's AUTOINCREMENT counters. A store with no
// AUTOINCREMENT tables has no sequence table; that is not an error.
func (p *Provider) ResetSequences(ctx context.Context, h lifecycle.Handle) error {
	sh, err := p.handle(h)
	if err != nil {
		return err
	}

	var n int
	if err := sh.db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'").Scan(&n); err != nil {
		return fmt.Errorf("checking sequence table: %w", err)
	}
	if n == 0 {
		return nil
	}
	if _, err := sh.db.ExecContext(ctx, "DELETE FROM sqlite_sequence"); err != nil {
		return fmt.Errorf("resetting sequences: %w", err)
	}
	return nil
}

func (p *Provider) storePath(name string, spec topology.StoreSpec) string {
	file := spec.Params["file"]
	if file == "" {
		file = name + ".db"
	}
	return filepath.Join(p.ws.Dir(), file)
}

func (p *Provider) handle(h lifecycle.Handle) (*storeHandle, error) {
	sh, ok := h.(*storeHandle)
	if !ok {
		return nil, fmt.Errorf("foreign handle %q", h.Name())
	}
	return sh, nil
}

// open creates or opens a SQLite database and applies the required
// pragmas.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// removeStoreFiles deletes the database file and its WAL sidecars;
// already-gone files are fine.
func removeStoreFiles(path string) error {
	for _, f := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", f, err)
		}
	}
	return nil
}
