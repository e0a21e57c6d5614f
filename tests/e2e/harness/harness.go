// Package harness provides the end-to-end test infrastructure: an agent
// environment with step logging and metric assertions.
package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/joshholl/integrations-core/internal/aggregator"
	"github.com/joshholl/integrations-core/internal/proc"
)

// AgentEnvVar names the variable holding the agent command template, for
// example "docker exec dd_clickhouse_agent agent". Tests skip when unset.
const AgentEnvVar = "IDEV_E2E_AGENT"

// checkTimeout bounds a single agent check invocation.
const checkTimeout = 2 * time.Minute

// E2EEnvironment wraps a provisioned agent for one test: it writes check
// configuration, runs checks through the agent binary, and holds the
// captured aggregator for assertions.
type E2EEnvironment struct {
	T      *testing.T
	Logger *StepLogger

	// Agg holds the payload of the last check run.
	Agg *aggregator.Aggregator

	// ConfDir is the temporary conf.d tree for this test.
	ConfDir string

	agent string
}

// NewE2EEnvironment creates an isolated environment for one test. The test
// is skipped when no agent command is configured.
func NewE2EEnvironment(t *testing.T) *E2EEnvironment {
	t.Helper()

	agent := os.Getenv(AgentEnvVar)
	if agent == "" {
		t.Skipf("set %s to run end-to-end tests", AgentEnvVar)
	}

	env := &E2EEnvironment{
		T:       t,
		Logger:  NewStepLogger(t),
		ConfDir: filepath.Join(t.TempDir(), "conf.d"),
		agent:   agent,
	}
	t.Cleanup(env.Logger.Elapsed)
	return env
}

// Step logs the next numbered test step.
func (env *E2EEnvironment) Step(format string, args ...any) {
	env.T.Helper()
	env.Logger.Step(format, args...)
}

// Result logs a step result.
func (env *E2EEnvironment) Result(format string, args ...any) {
	env.T.Helper()
	env.Logger.Result(format, args...)
}

// checkConfig is the on-disk layout of a check configuration file.
type checkConfig struct {
	InitConfig map[string]any   `yaml:"init_config"`
	Instances  []map[string]any `yaml:"instances"`
}

// WriteCheckConfig renders the instances into the environment's conf.d tree
// the way the agent expects them: conf.d/<check>.d/conf.yaml.
func (env *E2EEnvironment) WriteCheckConfig(check string, instances []map[string]any) string {
	env.T.Helper()

	data, err := yaml.Marshal(checkConfig{
		InitConfig: map[string]any{},
		Instances:  instances,
	})
	if err != nil {
		env.T.Fatalf("rendering %s config: %v", check, err)
	}

	dir := filepath.Join(env.ConfDir, check+".d")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		env.T.Fatalf("creating config dir: %v", err)
	}
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		env.T.Fatalf("writing %s config: %v", check, err)
	}

	env.Result("wrote %s", path)
	return path
}

// RunCheck invokes the configured agent for the check and captures its
// aggregator payload. checkRate runs the check twice so rate metrics have a
// value.
func (env *E2EEnvironment) RunCheck(check string, checkRate bool) {
	env.T.Helper()

	command := env.agent + " check " + check + " --json"
	if checkRate {
		command += " --check-rate"
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	result, err := proc.Run(ctx, &proc.Spec{Raw: command}, nil)
	if err != nil {
		env.T.Fatalf("running agent check: %v", err)
	}
	if result.ExitCode != 0 {
		env.T.Fatalf("agent check exited %d:\n%s", result.ExitCode, result.Output)
	}

	agg, err := aggregator.FromCheckJSON([]byte(result.Output))
	if err != nil {
		env.T.Fatalf("parsing check output: %v\n%s", err, result.Output)
	}
	env.Agg = agg

	names := agg.MetricNames()
	env.Result("captured %d metric name(s)", len(names))
}
