package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/testrig/internal/lifecycle"
	"github.com/roach88/testrig/internal/report"
	"github.com/roach88/testrig/internal/rig"
	"github.com/roach88/testrig/internal/run"
	"github.com/roach88/testrig/internal/sqlite"
	"github.com/roach88/testrig/internal/suite"
	"github.com/roach88/testrig/internal/topology"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Rig         string // rig file path
	Dir         string // unit discovery root
	Pattern     string // manifest glob override
	Failfast    bool
	KeepStores  bool
	Interactive bool
	WorkDir     string

	// Confirm overrides the collision prompt (for testing). If nil and
	// Interactive is set, a stdin prompt is wired in.
	Confirm lifecycle.Confirmer
}

// runEnv holds environment defaults for the run command. An explicit flag
// wins over the environment.
type runEnv struct {
	Rig         *string `env:"TESTRIG_RIG"`
	Dir         *string `env:"TESTRIG_DIR"`
	Pattern     *string `env:"TESTRIG_PATTERN"`
	Failfast    *bool   `env:"TESTRIG_FAILFAST"`
	KeepStores  *bool   `env:"TESTRIG_KEEP_STORES"`
	Interactive *bool   `env:"TESTRIG_INTERACTIVE"`
	WorkDir     *string `env:"TESTRIG_WORK_DIR"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [label...]",
		Short: "Provision stores and run test units",
		Long: `Run the test units discovered under the discovery root.

The rig file declares the stores to provision. Labels select a subset of
the discovered units; with no labels every unit runs. Between units each
store is reset to its fixture baseline, either fully or narrowed to the
unit's declared scope.

Exit codes:
  0       - All units passed
  1-120   - Number of failed plus errored units (capped at 120)
  121     - Configuration, provisioning, or infrastructure error
  122     - Command-line misuse
  130     - Interrupted, or a collision prompt was declined

Examples:
  testrig run
  testrig run checkout.Cart --rig ./rig.cue --dir ./units
  testrig run --failfast --format json
  testrig run --keep-stores --work-dir /tmp/rigs`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunEnv(cmd, opts); err != nil {
				return err
			}
			return runSuite(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rig, "rig", "rig.cue", "path to the rig configuration")
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "unit discovery root")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "manifest glob override (default from the rig)")
	cmd.Flags().BoolVar(&opts.Failfast, "failfast", false, "stop launching units after the first failure")
	cmd.Flags().BoolVar(&opts.KeepStores, "keep-stores", false, "leave provisioned stores standing for inspection")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", true, "ask before destroying a colliding store")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "workspace parent directory (default system temp)")

	return cmd
}

// applyRunEnv fills unset flags from TESTRIG_* environment variables.
func applyRunEnv(cmd *cobra.Command, opts *RunOptions) error {
	var e runEnv
	if err := env.Parse(&e); err != nil {
		return WrapExitError(ExitUsage, "parsing environment", err)
	}

	flags := cmd.Flags()
	if e.Rig != nil && !flags.Changed("rig") {
		opts.Rig = *e.Rig
	}
	if e.Dir != nil && !flags.Changed("dir") {
		opts.Dir = *e.Dir
	}
	if e.Pattern != nil && !flags.Changed("pattern") {
		opts.Pattern = *e.Pattern
	}
	if e.Failfast != nil && !flags.Changed("failfast") {
		opts.Failfast = *e.Failfast
	}
	if e.KeepStores != nil && !flags.Changed("keep-stores") {
		opts.KeepStores = *e.KeepStores
	}
	if e.Interactive != nil && !flags.Changed("interactive") {
		opts.Interactive = *e.Interactive
	}
	if e.WorkDir != nil && !flags.Changed("work-dir") {
		opts.WorkDir = *e.WorkDir
	}
	return nil
}

// runSuite wires the run from its parts and executes it: rig to topology
// to workspace, provider, and controller, then renders whatever report
// comes back.
func runSuite(opts *RunOptions, labels []string, cmd *cobra.Command) error {
	r, err := rig.Load(opts.Rig)
	if err != nil {
		return mapRunError(err)
	}

	order, err := topology.Resolve(r.Stores, r.Primary)
	if err != nil {
		return mapRunError(err)
	}
	steps, err := topology.BindMirrors(order, r.Stores)
	if err != nil {
		return mapRunError(err)
	}

	runID := uuid.NewString()
	ws := sqlite.NewWorkspace(opts.WorkDir, runID, opts.KeepStores)
	provider := sqlite.NewProvider(ws, r.Stores)

	var mgrOpts []lifecycle.ManagerOption
	if opts.Interactive {
		confirm := opts.Confirm
		if confirm == nil {
			confirm = &promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
		}
		mgrOpts = append(mgrOpts, lifecycle.WithInteractive(confirm))
	}
	stores := &storeManager{mgr: lifecycle.NewManager(provider, mgrOpts...), steps: steps}

	pattern := opts.Pattern
	if pattern == "" {
		pattern = r.Pattern
	}
	builder := &suite.Builder{Root: opts.Dir, Pattern: pattern, Apps: r.Apps}

	executor := run.NewExecutor(provider, sqlite.ProbeRunner{}, run.WithFailfast(opts.Failfast))

	ctrl := run.NewController(ws, builder, stores, executor, run.Options{
		Labels:     labels,
		Failfast:   opts.Failfast,
		KeepStores: opts.KeepStores,
		RunID:      runID,
	})

	// Graceful shutdown on Ctrl-C: the controller finishes teardown on a
	// detached context before the report comes back.
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, runErr := ctrl.Run(ctx)
	var renderErr error
	if rep != nil {
		if opts.KeepStores {
			if dir := ws.Dir(); dir != "" {
				rep.KeptPaths = []string{dir}
			}
		}
		renderer := &report.Renderer{Format: opts.Format, Writer: cmd.OutOrStdout()}
		renderErr = renderer.Render(rep)
	}

	if runErr != nil {
		return mapRunError(runErr)
	}
	if renderErr != nil {
		return WrapExitError(ExitFatal, "rendering report", renderErr)
	}
	if rep.Outcome != ExitSuccess {
		return NewExitError(rep.Outcome, fmt.Sprintf("%d unit(s) failed", rep.Result.Failed+rep.Result.Errored))
	}
	return nil
}

// mapRunError converts domain errors to exit-coded errors: an interrupt
// or a declined prompt exits ExitAborted, everything else ends the run as
// fatal.
func mapRunError(err error) error {
	var aborted *lifecycle.UserAbortedError
	switch {
	case errors.Is(err, context.Canceled), errors.As(err, &aborted):
		return WrapExitError(ExitAborted, "run aborted", err)
	case topology.IsConfigError(err):
		return WrapExitError(ExitFatal, "configuration error", err)
	default:
		return WrapExitError(ExitFatal, "run failed", err)
	}
}

// storeManager binds the lifecycle manager to this run's provisioning
// steps, giving the controller its two-call store interface.
type storeManager struct {
	mgr   *lifecycle.Manager
	steps []topology.ProvisionStep
}

var _ run.StoreManager = (*storeManager)(nil)

func (s *storeManager) Provision(ctx context.Context) (*lifecycle.Record, error) {
	return s.mgr.Provision(ctx, s.steps)
}

func (s *storeManager) Teardown(ctx context.Context, rec *lifecycle.Record) error {
	return s.mgr.Teardown(ctx, rec)
}

// promptConfirmer asks on the terminal and reads one y/N line. EOF means
// no.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p *promptConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
