package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshholl/integrations-core/internal/console"
	"github.com/joshholl/integrations-core/internal/db"
	"github.com/joshholl/integrations-core/internal/output"
)

var (
	flagHistoryCheck string
	flagHistoryLimit int
	flagHistoryJSON  bool
)

func init() {
	historyCmd.Flags().StringVar(&flagHistoryCheck, "check", "", "only show runs for the given check")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "maximum number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&flagHistoryJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded test runs",
	Long: `Show test runs recorded by the test command, newest first. Runs are
kept in a local database and pruned per history.retention_days.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output.SetJSON(flagHistoryJSON)

		cfg, err := loadConfig()
		if err != nil {
			return writeError(cmd, err, 1)
		}

		history, err := db.OpenUserDB(cfg.History.DatabasePath)
		if err != nil {
			return writeError(cmd, fmt.Errorf("opening run history: %w", err), 1)
		}
		defer history.Close()

		var runs []*db.TestRun
		if flagHistoryCheck != "" {
			runs, err = history.ListTestRunsByCheck(flagHistoryCheck, flagHistoryLimit)
		} else {
			runs, err = history.ListTestRuns(flagHistoryLimit)
		}
		if err != nil {
			return writeError(cmd, err, 1)
		}

		if output.IsJSON() {
			return output.JSON(runs)
		}

		if len(runs) == 0 {
			console.Info("No recorded test runs.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.Check,
				run.Kind,
				strings.Join(run.Envs, ","),
				runResult(run.ExitCode),
				runDuration(run.DurationMS),
			})
		}
		output.Table([]string{"STARTED", "CHECK", "KIND", "ENVS", "RESULT", "DURATION"}, rows)
		return nil
	},
}

func runResult(exitCode int) string {
	if exitCode == 0 {
		return "passed"
	}
	return fmt.Sprintf("failed (%d)", exitCode)
}

func runDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d >= time.Second {
		d = d.Round(100 * time.Millisecond)
	}
	return d.String()
}
