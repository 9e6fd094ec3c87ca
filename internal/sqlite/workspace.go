package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/testrig/internal/run"
)

// Workspace is the run's scratch directory: a run-scoped directory under
// the work root holding every store file. It implements the run
// environment hooks.
type Workspace struct {
	root  string
	runID string
	keep  bool
	dir   string
}

var _ run.Environment = (*Workspace)(nil)

// NewWorkspace creates a workspace rooted at root (os.TempDir() when
// empty). With keep set, teardown leaves the directory standing for
// inspection.
func NewWorkspace(root, runID string, keep bool) *Workspace {
	if root == "" {
		root = os.TempDir()
	}
	return &Workspace{root: root, runID: runID, keep: keep}
}

// Dir returns the scratch directory; empty until GlobalSetup has run.
func (w *Workspace) Dir() string {
	return w.dir
}

// GlobalSetup creates the run directory. Idempotent.
func (w *Workspace) GlobalSetup(ctx context.Context) error {
	dir := filepath.Join(w.root, "testrig-"+w.runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	w.dir = dir
	slog.Info("workspace created", "dir", dir)
	return nil
}

// GlobalTeardown removes the run directory, or keeps and logs it when the
// workspace was built with keep. Idempotent; a teardown before setup is a
// no-op.
func (w *Workspace) GlobalTeardown(ctx context.Context) error {
	if w.dir == "" {
		return nil
	}
	if w.keep {
		slog.Info("keeping workspace", "dir", w.dir)
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("removing workspace: %w", err)
	}
	w.dir = ""
	return nil
}
