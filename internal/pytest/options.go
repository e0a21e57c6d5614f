// Package pytest builds the pytest invocation options the task runner
// forwards to test environments through PYTEST_ADDOPTS.
package pytest

import (
	"fmt"
	"strings"
)

// Options mirrors the test command's flag set. The zero value renders the
// default option string used for a plain test run.
type Options struct {
	// Check is the integration under test, used for junit prefixes.
	Check string
	// Verbosity is the -v count from the CLI; 0 renders as verbosity 1
	// plus short tracebacks.
	Verbosity int
	// Color forces --color=yes/no; nil leaves pytest to decide.
	Color *bool
	// EnterPdb drops into the debugger on first failure and stops there.
	EnterPdb bool
	// Debug raises pytest log capture to debug and disables output capture.
	Debug bool
	// Bench selects benchmark-only runs; otherwise benchmarks are skipped.
	Bench bool
	// LatestMetrics enables the metadata validation tests.
	LatestMetrics bool
	// Coverage appends the coverage block with a trailing source
	// placeholder, filled in by FillCoverageSources.
	Coverage bool
	// JUnit writes per-environment junit XML reports.
	JUnit bool
	// E2E marks the junit report group as e2e instead of unit.
	E2E bool
	// DDTrace enables the tracer plugin for test visibility.
	DDTrace bool
	// Marker restricts the run to tests matching a marker expression.
	Marker string
	// TestFilter restricts the run to tests matching a substring expression.
	TestFilter string
	// ExtraArgs is appended verbatim.
	ExtraArgs string
}

// String renders the PYTEST_ADDOPTS value.
func (o Options) String() string {
	var b strings.Builder

	// Prevent no verbosity
	verbosity := o.Verbosity
	if verbosity == 0 {
		verbosity = 1
	}
	fmt.Fprintf(&b, "--verbosity=%d", verbosity)

	if o.Verbosity == 0 {
		b.WriteString(" --tb=short")
	}

	if o.Color != nil {
		if *o.Color {
			b.WriteString(" --color=yes")
		} else {
			b.WriteString(" --color=no")
		}
	}

	if o.EnterPdb {
		// Drop to PDB on first failure, then end the session
		b.WriteString(" --pdb -x")
	}

	if o.Debug {
		b.WriteString(" --log-level=debug -s")
	}

	if o.Bench {
		b.WriteString(" --benchmark-only --benchmark-cprofile=tottime")
	} else {
		b.WriteString(" --benchmark-skip")
	}

	if o.LatestMetrics {
		b.WriteString(" --run-latest-metrics")
	}

	if o.DDTrace {
		b.WriteString(" --ddtrace")
	}

	if o.JUnit {
		group := "unit"
		if o.E2E {
			group = "e2e"
		}
		// The report file must contain the env name to keep multiple envs
		// apart; $TOX_ENV_NAME is injected by the runner.
		fmt.Fprintf(&b, " --junit-xml=.junit/test-%s-$TOX_ENV_NAME.xml", group)
		fmt.Fprintf(&b, " --junit-prefix=%s.$TOX_ENV_NAME", o.Check)
	}

	if o.Coverage {
		b.WriteString(
			// Located at the root of the repo
			" --cov-config=../.coveragerc" +
				// Use the same .coverage file to aggregate results
				" --cov-append" +
				// Show no coverage report until the end
				" --cov-report=" +
				// Replaced with the coverage paths for the package
				" {}",
		)
	}

	if o.Marker != "" {
		fmt.Fprintf(&b, " -m %q", o.Marker)
	}

	if o.TestFilter != "" {
		fmt.Fprintf(&b, " -k %q", o.TestFilter)
	}

	if o.ExtraArgs != "" {
		b.WriteString(" " + o.ExtraArgs)
	}

	return b.String()
}
