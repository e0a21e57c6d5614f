// Package cli implements the idev command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshholl/integrations-core/internal/config"
	"github.com/joshholl/integrations-core/internal/console"
	"github.com/joshholl/integrations-core/internal/logutil"
	"github.com/joshholl/integrations-core/internal/output"
)

var (
	flagConfig   string
	flagColor    string
	flagQuiet    bool
	flagLogLevel string

	// colorOverride is nil in auto mode, else the forced setting.
	colorOverride *bool
)

var rootCmd = &cobra.Command{
	Use:   "idev",
	Short: "Developer tooling for Agent integration repos",
	Long: `idev manages the day-to-day work on Agent integration repos:
running test suites through the task runner, listing test environments,
browsing past runs, and maintaining the local configuration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagLogLevel != "" {
			logutil.SetLevel(flagLogLevel)
		}
		if flagQuiet {
			logutil.SetLevel("warn")
		}

		override, err := console.ResolveColor(flagColor)
		if err != nil {
			return err
		}
		colorOverride = override
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the project config file")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "color output: auto, always or never")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error); defaults to IDEV_LOG_LEVEL")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the effective configuration honoring the --config flag.
func loadConfig() (config.Config, error) {
	return config.Load(config.LoadOptions{ConfigPath: flagConfig})
}

// repoRoot resolves the integrations repo under test: the configured path
// of the active repo when set, else the current directory.
func repoRoot(cfg config.Config) (string, error) {
	if root := cfg.RepoRoot(); root != "" {
		return root, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return cwd, nil
}

// writeError reports err in the active output mode and silences cobra's
// default handling.
func writeError(cmd *cobra.Command, err error, code int) error {
	if output.IsJSON() {
		_ = output.JSONError(err, code)
	} else {
		console.Failure("Error: %s", err)
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return err
}
