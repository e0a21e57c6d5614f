package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshholl/integrations-core/internal/ci"
	"github.com/joshholl/integrations-core/internal/config"
	"github.com/joshholl/integrations-core/internal/console"
	"github.com/joshholl/integrations-core/internal/db"
	"github.com/joshholl/integrations-core/internal/deps"
	"github.com/joshholl/integrations-core/internal/envs"
	"github.com/joshholl/integrations-core/internal/logutil"
	"github.com/joshholl/integrations-core/internal/proc"
	"github.com/joshholl/integrations-core/internal/pytest"
)

// Variables exported to test environments.
const (
	envSkipEnvironment = "IDEV_SKIP_ENV"
	envE2EParent       = "IDEV_E2E_PARENT"
	envCovMissing      = "IDEV_COV_MISSING"
	envAPIKey          = "AGENT_API_KEY"
)

// basePassenv names the variables the task runner always passes down to
// test environments.
const basePassenv = "IDEV_* PROGRAM* USERNAME PYTEST_ADDOPTS DOCKER_* COMPOSE_*"

// ddtracePassenv names the tracer variables forwarded when --ddtrace is set.
const ddtracePassenv = "DD_SERVICE DD_ENV DD_TAGS DD_TRACE* DD_PROFILING* DD_AGENT_HOST"

var (
	flagTestFormatStyle       bool
	flagTestStyle             bool
	flagTestBench             bool
	flagTestLatestMetrics     bool
	flagTestE2E               bool
	flagTestDDTrace           bool
	flagTestCoverage          bool
	flagTestCovMissing        bool
	flagTestJUnit             bool
	flagTestMarker            string
	flagTestFilter            string
	flagTestEnterPdb          bool
	flagTestDebug             bool
	flagTestVerbose           int
	flagTestList              bool
	flagTestPassenv           string
	flagTestChanged           bool
	flagTestCovKeep           bool
	flagTestSkipEnv           bool
	flagTestPytestArgs        string
	flagTestForceBaseUnpinned bool
	flagTestForceBaseMin      bool
	flagTestForceEnvRebuild   bool
)

func init() {
	testCmd.Flags().BoolVar(&flagTestFormatStyle, "format-style", false, "run only the code style formatter")
	testCmd.Flags().BoolVarP(&flagTestStyle, "style", "s", false, "run only style checks")
	testCmd.Flags().BoolVarP(&flagTestBench, "bench", "b", false, "run only benchmarks")
	testCmd.Flags().BoolVar(&flagTestLatestMetrics, "latest-metrics", false, "only verify support of new metrics")
	testCmd.Flags().BoolVar(&flagTestE2E, "e2e", false, "run only end-to-end tests")
	testCmd.Flags().BoolVar(&flagTestDDTrace, "ddtrace", false, "run tests using the tracer for test visibility")
	testCmd.Flags().BoolVarP(&flagTestCoverage, "cov", "c", false, "measure code coverage")
	testCmd.Flags().BoolVar(&flagTestCovMissing, "cov-missing", false, "show line numbers of statements that were not executed")
	testCmd.Flags().BoolVarP(&flagTestJUnit, "junit", "j", false, "generate junit reports")
	testCmd.Flags().StringVarP(&flagTestMarker, "marker", "m", "", "only run tests matching a given marker expression")
	testCmd.Flags().StringVarP(&flagTestFilter, "filter", "k", "", "only run tests matching a given substring expression")
	testCmd.Flags().BoolVar(&flagTestEnterPdb, "pdb", false, "drop to PDB on first failure, then end the test session")
	testCmd.Flags().BoolVarP(&flagTestDebug, "debug", "d", false, "set the log level to debug")
	testCmd.Flags().CountVarP(&flagTestVerbose, "verbose", "v", "increase verbosity (can be used additively)")
	testCmd.Flags().BoolVarP(&flagTestList, "list", "l", false, "list available test environments")
	testCmd.Flags().StringVar(&flagTestPassenv, "passenv", "", "additional environment variables to pass down to test environments")
	testCmd.Flags().BoolVar(&flagTestChanged, "changed", false, "only test changed checks")
	testCmd.Flags().BoolVar(&flagTestCovKeep, "cov-keep", false, "keep coverage reports")
	testCmd.Flags().BoolVar(&flagTestSkipEnv, "skip-env", false, "skip environment creation, assume it is already running")
	testCmd.Flags().StringVar(&flagTestPytestArgs, "pytest-args", "", "additional arguments to pytest")
	testCmd.Flags().BoolVar(&flagTestForceBaseUnpinned, "force-base-unpinned", false, "force the unpinned base package from the check's dependencies")
	testCmd.Flags().BoolVar(&flagTestForceBaseMin, "force-base-min", false, "force the lowest viable release of the base package")
	testCmd.Flags().BoolVar(&flagTestForceEnvRebuild, "force-env-rebuild", false, "force recreating the test environments")

	rootCmd.AddCommand(testCmd)
}

var testCmd = &cobra.Command{
	Use:   "test [checks...]",
	Short: "Run tests",
	Long: `Run tests for Agent-based checks.

If no checks are specified, this will only test checks that
were changed compared to the base branch.

You can also select specific comma-separated environments to test like so:

  idev test mysql:mysql57,maria10130`,
	ValidArgsFunction: completeTestableChecks,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return writeError(cmd, err, 1)
		}
		root, err := repoRoot(cfg)
		if err != nil {
			return writeError(cmd, err, 1)
		}

		console.SetDebugEnabled(flagTestVerbose > 0)
		ctx := cmd.Context()

		if flagTestList {
			resolved, err := envs.Resolve(ctx, root, cfg.Runner.BaseBranch, args, envs.Filters{
				Every:       true,
				Sort:        true,
				ChangedOnly: flagTestChanged,
			})
			if err != nil {
				return writeError(cmd, err, 1)
			}
			displayCheckEnvs(resolved)
			return nil
		}

		return runTests(ctx, cmd, cfg, root, args)
	},
}

func completeTestableChecks(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	root, err := repoRoot(cfg)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	checks, err := envs.Testable(root)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, check := range checks {
		if strings.HasPrefix(check, toComplete) {
			completions = append(completions, check)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

func displayCheckEnvs(resolved []envs.CheckEnvs) {
	for _, ce := range resolved {
		console.Success("`%s`:", ce.Check)
		for _, env := range ce.Envs {
			console.Info("    %s", env)
		}
	}
}

func runTests(ctx context.Context, cmd *cobra.Command, cfg config.Config, root string, args []string) error {
	testingOnCI := ci.RunningOnCI()

	coverage := flagTestCoverage || flagTestCovMissing

	marker := flagTestMarker
	if flagTestE2E {
		marker = "e2e"
	}

	testEnv := map[string]string{
		envCovMissing: strconv.FormatBool(flagTestCovMissing || testingOnCI),
	}
	passenv := basePassenv

	if flagTestSkipEnv {
		testEnv[envSkipEnvironment] = "true"
		passenv += " " + envSkipEnvironment
	}
	if flagTestPassenv != "" {
		passenv += " " + flagTestPassenv
	}
	if vars := ci.EnvVars(); len(vars) > 0 {
		passenv += " " + strings.Join(vars, " ")
	}

	if colorOverride != nil {
		if *colorOverride {
			testEnv["PY_COLORS"] = "1"
		} else {
			testEnv["PY_COLORS"] = "0"
		}
	}

	if flagTestE2E {
		parent, err := os.Executable()
		if err != nil {
			parent = os.Args[0]
		}
		testEnv[envE2EParent] = parent
		passenv += " " + envE2EParent
	}

	if flagTestDDTrace {
		passenv += " " + ddtracePassenv
		// CI visibility needs the pipeline variables of the supported
		// providers as well.
		passenv += " TF_BUILD BUILD* SYSTEM*"

		service := os.Getenv("DD_SERVICE")
		if service == "" {
			service = cfg.Runner.DDTraceService
		}
		testEnv["DD_SERVICE"] = service
	}

	apiKey := cfg.ActiveOrg().APIKey
	if apiKey == "" {
		apiKey = os.Getenv(envAPIKey)
	}
	if apiKey != "" {
		testEnv[envAPIKey] = apiKey
		passenv += " " + envAPIKey
	}

	resolved, err := envs.Resolve(ctx, root, cfg.Runner.BaseBranch, args, envs.Filters{
		Style:       flagTestStyle,
		FormatStyle: flagTestFormatStyle,
		Benchmark:   flagTestBench,
		ChangedOnly: flagTestChanged,
	})
	if err != nil {
		return writeError(cmd, err, 1)
	}

	history := openRunHistory(cfg)
	if history != nil {
		defer history.Close()
	}

	testsRan := false

	for _, ce := range resolved {
		check := ce.Check
		if len(ce.Envs) == 0 {
			console.Debug("No envs found for: `%s`", check)
			continue
		}

		ddtraceCheck := flagTestDDTrace
		if flagTestDDTrace && runtime.GOOS == "windows" && anyEnvContains(ce.Envs, "py2") {
			// The tracer is not installable on py2 environments under
			// Windows.
			console.Warning("ddtrace flag is not available for windows-py2 environments ; disabling the flag for this check.")
			ddtraceCheck = false
		}

		outputSeparator := ""
		if testsRan {
			outputSeparator = "\n"
		}
		testsRan = true

		pytestOptions := pytest.Options{
			Check:         check,
			Verbosity:     flagTestVerbose,
			Color:         colorOverride,
			EnterPdb:      flagTestEnterPdb,
			Debug:         flagTestDebug,
			Bench:         flagTestBench,
			LatestMetrics: flagTestLatestMetrics,
			Coverage:      coverage,
			JUnit:         flagTestJUnit,
			E2E:           flagTestE2E,
			DDTrace:       ddtraceCheck,
			Marker:        marker,
			TestFilter:    flagTestFilter,
			ExtraArgs:     flagTestPytestArgs,
		}.String()
		if coverage {
			pytestOptions = pytest.FillCoverageSources(pytestOptions, check)
		}
		testEnv["PYTEST_ADDOPTS"] = pytestOptions

		if flagTestVerbose > 0 {
			console.Info("pytest options: `%s`", pytestOptions)
		}

		checkDir := filepath.Join(root, check)
		runEnv := environSlice(testEnv)
		runEnv = append(runEnv, "TOX_TESTENV_PASSENV="+passenv)

		displayKind, runKind := displayedTestKind()
		waitText := fmt.Sprintf("%sRunning %s for `%s`", outputSeparator, displayKind, check)
		console.Waiting("%s", waitText)
		console.Waiting(strings.Repeat("-", len(waitText)))

		command := []string{
			cfg.Runner.Command,
			"--skip-missing-interpreters",
			"--develop",
			"-e " + strings.Join(ce.Envs, ","),
		}

		baseOrDev := strings.HasPrefix(check, "checks_")
		switch {
		case flagTestForceBaseMin && !baseOrDev:
			req, err := deps.ReadCheckBaseDependency(checkDir)
			if err != nil {
				console.Abort(1, "\nError collecting base package dependencies: %s", err)
			}
			spec := req.FirstSpec()
			if spec == nil || spec.Operator != ">=" {
				console.Abort(1, "\nFailed to determine minimum version of package `%s`: %v", deps.BasePackage, spec)
			}
			runEnv = append(runEnv, "TOX_FORCE_INSTALL="+deps.BasePackage+"[deps]=="+spec.Version)
		case flagTestForceBaseUnpinned && !baseOrDev:
			runEnv = append(runEnv, "TOX_FORCE_UNPINNED="+deps.BasePackage)
		case (flagTestForceBaseMin || flagTestForceBaseUnpinned) && baseOrDev:
			console.Info("Skipping forcing base dependency for check %s", check)
		}

		if flagTestForceEnvRebuild {
			command = append(command, "--recreate")
		}
		if flagTestVerbose > 0 {
			command = append(command, "-"+strings.Repeat("v", flagTestVerbose))
		}

		commandLine := strings.Join(command, " ")
		console.Debug("runner command: %s", commandLine)

		started := time.Now()
		result, err := proc.Run(ctx, &proc.Spec{Raw: commandLine, Dir: checkDir, Env: runEnv}, os.Stdout)
		if err != nil {
			return writeError(cmd, err, 1)
		}

		recordRun(history, &db.TestRun{
			Check:      check,
			Envs:       ce.Envs,
			Kind:       runKind,
			Runner:     cfg.Runner.Command,
			ExitCode:   result.ExitCode,
			DurationMS: result.Duration.Milliseconds(),
			StartedAt:  started.UTC(),
		})

		if result.ExitCode != 0 {
			console.Abort(result.ExitCode, "\nFailed!")
		}

		if coverage && ce.Coverage && fileExists(filepath.Join(checkDir, ".coverage")) {
			if !flagTestCovKeep {
				console.Info("\n---------- Coverage report ----------\n")

				result, err = proc.Run(ctx, &proc.Spec{
					Raw: "coverage report --rcfile=../.coveragerc",
					Dir: checkDir,
					Env: runEnv,
				}, os.Stdout)
				if err != nil {
					return writeError(cmd, err, 1)
				}
				if result.ExitCode != 0 {
					console.Abort(result.ExitCode, "\nFailed!")
				}
			}

			if testingOnCI {
				result, err = proc.Run(ctx, &proc.Spec{
					Raw: "coverage xml -i --rcfile=../.coveragerc",
					Dir: checkDir,
					Env: runEnv,
				}, os.Stdout)
				if err != nil {
					return writeError(cmd, err, 1)
				}
				if result.ExitCode != 0 {
					console.Abort(result.ExitCode, "\nFailed!")
				}

				if err := pytest.FixCoverageReport(check, filepath.Join(checkDir, "coverage.xml")); err != nil {
					return writeError(cmd, err, 1)
				}

				result, err = proc.Run(ctx, &proc.Spec{
					Argv: []string{"codecov", "-X", "gcov", "--root", root, "-F", check, "-f", "coverage.xml"},
					Dir:  checkDir,
					Env:  runEnv,
				}, os.Stdout)
				if err != nil {
					return writeError(cmd, err, 1)
				}
				if result.ExitCode != 0 {
					console.Abort(result.ExitCode, "\nFailed!")
				}
			} else if !flagTestCovKeep {
				removeArtifact(filepath.Join(checkDir, ".coverage"))
				removeArtifact(filepath.Join(checkDir, "coverage.xml"))
			}
		}

		console.Success("\nPassed!")

		// The agent environment outlives a single invocation, so e2e runs
		// only ever target one check at a time.
		if flagTestE2E {
			break
		}
	}

	if !testsRan {
		if flagTestFormatStyle {
			console.Warning("Code formatting is not enabled!")
			console.Info("To enable it, set `check_style = true` under the check's %s.", envs.MatrixFile)
		} else {
			console.Info("Nothing to test!")
		}
	}
	return nil
}

// displayedTestKind maps the flag state to the banner wording and the kind
// recorded in run history.
func displayedTestKind() (string, string) {
	switch {
	case flagTestFormatStyle:
		return "the code formatter", db.RunKindFormat
	case flagTestStyle:
		return "only style checks", db.RunKindStyle
	case flagTestBench:
		return "only benchmarks", db.RunKindBench
	case flagTestLatestMetrics:
		return "only latest metrics validation", db.RunKindLatestMetrics
	case flagTestE2E:
		return "only end-to-end tests", db.RunKindE2E
	default:
		return "tests", db.RunKindTests
	}
}

// openRunHistory opens the local run store. History is best-effort: a
// failure to open it never blocks testing.
func openRunHistory(cfg config.Config) *db.DB {
	history, err := db.OpenUserDB(cfg.History.DatabasePath)
	if err != nil {
		logutil.Warn("run history disabled", "error", err)
		return nil
	}

	if cfg.History.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.History.RetentionDays)
		if _, err := history.PruneTestRuns(cutoff); err != nil {
			logutil.Warn("pruning run history", "error", err)
		}
	}
	return history
}

func recordRun(history *db.DB, run *db.TestRun) {
	if history == nil {
		return
	}
	if err := history.InsertTestRun(run); err != nil {
		logutil.Warn("recording test run", "check", run.Check, "error", err)
	}
}

func environSlice(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for key, value := range env {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	return pairs
}

func anyEnvContains(names []string, substr string) bool {
	for _, name := range names {
		if strings.Contains(name, substr) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logutil.Debug("removing coverage artifact", "path", path, "error", err)
	}
}
