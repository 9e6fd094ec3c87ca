package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/testrig/internal/lifecycle"
	"github.com/roach88/testrig/internal/report"
	"github.com/roach88/testrig/internal/suite"
	"github.com/roach88/testrig/internal/testutil"
)

const testRig = `
primary: "default"
stores: [{
	name: "default"
	schema: ["CREATE TABLE checkout_items (id INTEGER PRIMARY KEY AUTOINCREMENT, sku TEXT NOT NULL)"]
	fixtures: ["INSERT INTO checkout_items (sku) VALUES ('seed')"]
}]
`

const passingManifest = `module: checkout
groups:
  - name: Cart
    units:
      - name: add_item
        probes:
          - store: default
            exec: "INSERT INTO checkout_items (sku) VALUES ('widget')"
          - store: default
            query: "SELECT count(*) FROM checkout_items"
            want: 2
      - name: starts_from_baseline
        probes:
          - store: default
            query: "SELECT count(*) FROM checkout_items"
            want: 1
`

const failingManifest = `module: checkout
groups:
  - name: Cart
    units:
      - name: wrong_count
        probes:
          - store: default
            query: "SELECT count(*) FROM checkout_items"
            want: 5
`

// collidingRig declares two stores backed by the same file, so the
// second one always collides during provisioning.
const collidingRig = `
primary: "default"
stores: [{
	name: "default"
	params: {file: "shared.db"}
	schema: ["CREATE TABLE checkout_items (id INTEGER PRIMARY KEY AUTOINCREMENT, sku TEXT NOT NULL)"]
	fixtures: ["INSERT INTO checkout_items (sku) VALUES ('seed')"]
}, {
	name: "audit"
	params: {file: "shared.db"}
	schema: ["CREATE TABLE audit_log (id INTEGER PRIMARY KEY, note TEXT)"]
}]
`

const failfastManifest = `module: checkout
groups:
  - name: Cart
    units:
      - name: wrong_count
        probes:
          - store: default
            query: "SELECT count(*) FROM checkout_items"
            want: 5
      - name: pass_one
        probes:
          - store: default
            query: "SELECT count(*) FROM checkout_items"
            want: 1
      - name: pass_two
        probes:
          - store: default
            query: "SELECT count(*) FROM checkout_items"
            want: 1
`

// writeRunFixture lays out a rig and one unit manifest and returns the
// rig path, the discovery root, and an empty workspace parent.
func writeRunFixture(t *testing.T, manifest string) (rigPath, unitsDir, workDir string) {
	t.Helper()
	root := t.TempDir()
	unitsDir = filepath.Join(root, "units")
	workDir = filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(unitsDir, 0o755))
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	rigPath = filepath.Join(root, "rig.cue")
	require.NoError(t, os.WriteFile(rigPath, []byte(testRig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(unitsDir, "unit_checkout.yaml"), []byte(manifest), 0o644))
	return rigPath, unitsDir, workDir
}

// writeCollisionFixture is writeRunFixture with the colliding rig.
func writeCollisionFixture(t *testing.T) (rigPath, unitsDir, workDir string) {
	t.Helper()
	root := t.TempDir()
	unitsDir = filepath.Join(root, "units")
	workDir = filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(unitsDir, 0o755))
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	rigPath = filepath.Join(root, "rig.cue")
	require.NoError(t, os.WriteFile(rigPath, []byte(collidingRig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(unitsDir, "unit_checkout.yaml"), []byte(passingManifest), 0o644))
	return rigPath, unitsDir, workDir
}

// execRun executes the root command with args and returns stdout and the
// command error.
func execRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunAllUnitsPass(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, passingManifest)

	out, err := execRun(t, "run",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir, "--interactive=false")
	require.NoError(t, err)

	assert.Contains(t, out, "Run Summary: 2 passed, 0 failed, 0 errored, 0 skipped")
	assert.Contains(t, out, "✓ All units passed")
	assert.Contains(t, out, "default")

	// The workspace is gone after a clean run.
	entries, readErr := os.ReadDir(workDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRunFailureExitCode(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, failingManifest)

	out, err := execRun(t, "run",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir, "--interactive=false")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, out, "✗ 1 unit(s) failed")
}

func TestRunJSONEnvelope(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, failingManifest)

	out, err := execRun(t, "--format", "json", "run",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir, "--interactive=false")
	require.Error(t, err)

	var resp report.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, report.CodeUnitsFailed, resp.Error.Code)
	require.NotNil(t, resp.Data)
	assert.Equal(t, 1, resp.Data.Result.Failed)
	assert.Equal(t, 1, resp.Data.Outcome)
	assert.Equal(t, "reported", resp.Data.State)
	assert.NotEmpty(t, resp.Data.RunID)
}

func TestRunFailfastSkipsRemainder(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, failfastManifest)

	out, err := execRun(t, "--format", "json", "run",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir,
		"--interactive=false", "--failfast")
	require.Error(t, err)

	var resp report.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Data)
	assert.Equal(t, 0, resp.Data.Result.Passed)
	assert.Equal(t, 1, resp.Data.Result.Failed)
	assert.Equal(t, 2, resp.Data.Result.Skipped)
}

func TestRunMissingRig(t *testing.T) {
	_, unitsDir, workDir := writeRunFixture(t, passingManifest)

	_, err := execRun(t, "run",
		"--rig", filepath.Join(workDir, "nope.cue"), "--dir", unitsDir, "--work-dir", workDir,
		"--interactive=false")
	require.Error(t, err)
	assert.Equal(t, ExitFatal, GetExitCode(err))
	assert.Contains(t, err.Error(), "configuration error")
}

func TestRunUnknownLabel(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, passingManifest)

	_, err := execRun(t, "run", "billing.Missing",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir, "--interactive=false")
	require.Error(t, err)
	assert.Equal(t, ExitFatal, GetExitCode(err))
	assert.Contains(t, err.Error(), "billing.Missing")
}

func TestRunKeepStoresLeavesWorkspace(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, passingManifest)

	out, err := execRun(t, "run",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir,
		"--interactive=false", "--keep-stores")
	require.NoError(t, err)
	assert.Contains(t, out, "Stores kept:")

	entries, readErr := os.ReadDir(workDir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "testrig-"))

	_, statErr := os.Stat(filepath.Join(workDir, entries[0].Name(), "default.db"))
	assert.NoError(t, statErr, "kept store file should remain")
}

func TestRunEnvironmentSuppliesPaths(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, passingManifest)
	t.Setenv("TESTRIG_RIG", rigPath)
	t.Setenv("TESTRIG_DIR", unitsDir)
	t.Setenv("TESTRIG_WORK_DIR", workDir)

	out, err := execRun(t, "run", "--interactive=false")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All units passed")
}

func TestRunFlagBeatsEnvironment(t *testing.T) {
	rigPath, unitsDir, workDir := writeRunFixture(t, passingManifest)
	t.Setenv("TESTRIG_RIG", filepath.Join(workDir, "broken.cue"))

	_, err := execRun(t, "run",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir, "--interactive=false")
	require.NoError(t, err)
}

func TestRunCollisionPromptDeclined(t *testing.T) {
	rigPath, unitsDir, workDir := writeCollisionFixture(t)

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader("n\n"))
	cmd.SetArgs([]string{"run",
		"--rig", rigPath, "--dir", unitsDir, "--work-dir", workDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitAborted, GetExitCode(err))
	assert.Contains(t, buf.String(), `store "audit" already exists; destroy it and recreate?`)
	assert.Contains(t, buf.String(), "Run aborted")

	// Rollback and teardown ran: nothing is left behind.
	entries, readErr := os.ReadDir(workDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRunConfirmOverrideDeclines(t *testing.T) {
	rigPath, unitsDir, workDir := writeCollisionFixture(t)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: report.FormatText},
		Rig:         rigPath,
		Dir:         unitsDir,
		WorkDir:     workDir,
		Interactive: true,
		Confirm:     testutil.NewStaticConfirmer(false),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := runSuite(opts, nil, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitAborted, GetExitCode(err))

	var aborted *lifecycle.UserAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, "audit", aborted.Store)
}

func TestMapRunError(t *testing.T) {
	canceled := fmt.Errorf("executing suite: %w", context.Canceled)
	assert.Equal(t, ExitAborted, GetExitCode(mapRunError(canceled)))

	declined := fmt.Errorf("provisioning stores: %w", &lifecycle.UserAbortedError{Store: "default"})
	assert.Equal(t, ExitAborted, GetExitCode(mapRunError(declined)))

	config := fmt.Errorf("building suite: %w", &suite.AmbiguousLabelError{Label: "nope"})
	assert.Equal(t, ExitFatal, GetExitCode(mapRunError(config)))

	assert.Equal(t, ExitFatal, GetExitCode(mapRunError(errors.New("disk gone"))))
}

func TestPromptConfirmer(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false}, // EOF defaults to no
	}

	for _, tc := range cases {
		out := &bytes.Buffer{}
		p := &promptConfirmer{in: strings.NewReader(tc.input), out: out}
		got, err := p.Confirm("destroy store?")
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got, "input %q", tc.input)
		assert.Contains(t, out.String(), "destroy store? [y/N]:")
	}
}

func TestRunHelpText(t *testing.T) {
	out, err := execRun(t, "run", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "Exit codes:")
	assert.Contains(t, out, "--rig")
	assert.Contains(t, out, "--keep-stores")
	assert.Contains(t, out, "label")
}
