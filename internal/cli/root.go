package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/roach88/testrig/internal/report"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbosity int    // 0 warnings, 1 info, 2 and up debug
	Format    string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{report.FormatText, report.FormatJSON}

// rootEnv holds environment defaults for the global flags. An explicit
// flag wins over the environment.
type rootEnv struct {
	Verbosity *int    `env:"TESTRIG_VERBOSITY"`
	Format    *string `env:"TESTRIG_FORMAT"`
}

// NewRootCommand creates the root command for the testrig CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "testrig",
		Short: "testrig - disposable store orchestration for test runs",
		Long: `testrig provisions throwaway SQLite stores from a rig file, runs the
test units discovered under a directory with per-unit state resets, and
reports the outcome for humans or machines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var e rootEnv
			if err := env.Parse(&e); err != nil {
				return WrapExitError(ExitUsage, "parsing environment", err)
			}
			flags := cmd.Flags()
			if e.Verbosity != nil && !flags.Changed("verbosity") {
				opts.Verbosity = *e.Verbosity
			}
			if e.Format != nil && !flags.Changed("format") {
				opts.Format = *e.Format
			}

			if !isValidFormat(opts.Format) {
				return NewExitError(ExitUsage, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(opts.Verbosity)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().IntVarP(&opts.Verbosity, "verbosity", "v", 0, "log verbosity: 0 warnings, 1 info, 2 debug")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", report.FormatText, "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitUsage, "invalid usage", err)
	})

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// configureLogging routes structured logs to stderr at the level the
// verbosity selects, keeping stdout clean for report output.
func configureLogging(verbosity int) {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
