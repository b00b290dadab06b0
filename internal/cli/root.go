// Package cli implements the autooncall command surface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/liEric123/AutoOncallSupervisor/internal/config"
)

var (
	cfgFile    string
	jsonOutput bool
	noColor    bool

	// Build information - set by goreleaser via ldflags
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "autooncall",
	Short: "Detect and retry Buildkite builds that failed due to Agent Lost",
	Long: `AutoOncall Supervisor polls a Buildkite pipeline for failed builds whose
terminal job exited with status -1 (the agent disconnected mid-job), retries
those jobs, and posts bilingual Lark cards for each detection and retry outcome.

One invocation runs exactly one poll cycle; schedule it externally (cron,
systemd timer) to poll continuously.

Quick Start:
  autooncall run                    # One detection/retry cycle
  autooncall status                 # Show the recent build window
  autooncall run --config /etc/autooncall/config.toml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $AUTOONCALL_CONFIG, ./config.toml, ~/.config/autooncall/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// loadSetup loads the main config and the optional pipelines file next to it.
// Any failure here aborts the run before network I/O.
func loadSetup() (*config.Config, []config.Pipeline, error) {
	path := config.ResolvePath(cfgFile)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	pipelines, err := config.LoadPipelines(filepath.Dir(path))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pipelines, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "autooncall %s (commit %s, built %s)\n", Version, Commit, Date)
		},
	}
}
