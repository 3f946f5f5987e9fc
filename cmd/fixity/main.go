// cmd/fixity/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	"fixity/internal/config"
	"fixity/internal/logging"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

// errChanged is returned by check --fail-on-change when the tree differs
// from its baseline. It maps to exit status 2.
var errChanged = errors.New("changes detected")

// app carries what the persistent flags resolve to.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "fixity",
		Short: "Fixity detects added, removed and modified files in a directory tree",
		Long: `Fixity records the SHA-256 of every file under a directory in a control
file and, on the next run, reports which files were added, removed or
modified since then.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.Path(), "configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newCheckCmd(a),
		newSnapshotCmd(a),
		newDiffCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.NewConsole(a.logLevel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.logger = logger
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "fixity %s\n", version)
			return nil
		},
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errChanged):
		return 2
	default:
		return 1
	}
}

func main() {
	err := newRootCmd().Execute()
	if err != nil && !errors.Is(err, errChanged) {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
