package pytest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// sourcePlaceholder marks where coverage source arguments are injected into
// a rendered option string.
const sourcePlaceholder = "{}"

// coverageSources returns the paths measured for a check, relative to the
// check's directory.
func coverageSources(check string) []string {
	var pkg string
	switch check {
	case "checks_base":
		pkg = "checks/base"
	case "checks_dev":
		pkg = "checks/dev"
	default:
		pkg = "checks/" + strings.ReplaceAll(check, "-", "_")
	}
	return []string{pkg, "tests"}
}

// CoverageSourceArgs renders the --cov arguments for a check.
func CoverageSourceArgs(check string) string {
	sources := coverageSources(check)
	args := make([]string, 0, len(sources))
	for _, source := range sources {
		args = append(args, "--cov="+source)
	}
	return strings.Join(args, " ")
}

// FillCoverageSources replaces the source placeholder in a rendered option
// string with the check's --cov arguments.
func FillCoverageSources(options, check string) string {
	return strings.Replace(options, sourcePlaceholder, CoverageSourceArgs(check), 1)
}

// FixCoverageReport rewrites the shared tests/ paths in a coverage XML
// report to <check>/tests/ so reports from different checks stay distinct
// after upload.
func FixCoverageReport(check, reportFile string) error {
	report, err := os.ReadFile(reportFile)
	if err != nil {
		return fmt.Errorf("reading coverage report: %w", err)
	}

	fixed := bytes.ReplaceAll(report, []byte(`"tests/`), []byte(`"`+check+`/tests/`))

	if err := os.WriteFile(reportFile, fixed, 0o644); err != nil {
		return fmt.Errorf("writing coverage report: %w", err)
	}
	return nil
}
