// Package envs discovers the test environments integration checks declare
// and selects the ones a test run should target.
//
// Every testable check carries a matrix.toml at its root listing the
// environments the task runner knows how to build. Environment names are
// meaningful: names containing "bench" are benchmark suites, "format_style"
// is the code formatter, and "style" is the lint gate. The two style
// environments are implied by check_style rather than listed.
package envs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/joshholl/integrations-core/internal/logutil"
	"github.com/joshholl/integrations-core/internal/proc"
)

// MatrixFile is the per-check environment manifest name.
const MatrixFile = "matrix.toml"

// Matrix describes the test environments a check offers.
type Matrix struct {
	// CheckStyle adds the style and format_style environments.
	CheckStyle bool `toml:"check_style"`
	// Coverage gates coverage post-processing; unset means enabled.
	Coverage *bool `toml:"coverage"`
	// Envs lists environment names in declaration order.
	Envs []string `toml:"envs"`
}

// CoverageEnabled reports whether coverage reports should be produced for
// the check.
func (m Matrix) CoverageEnabled() bool {
	return m.Coverage == nil || *m.Coverage
}

// Available returns the environments the check offers. With sorted set,
// names are ordered lexicographically with benchmark environments pushed
// last, matching how runs are displayed.
func (m Matrix) Available(sorted bool) []string {
	envs := append([]string(nil), m.Envs...)
	if m.CheckStyle {
		envs = append(envs, "style", "format_style")
	}
	if !sorted {
		return envs
	}

	sort.Strings(envs)
	ordered := make([]string, 0, len(envs))
	var benches []string
	for _, env := range envs {
		if isBench(env) {
			benches = append(benches, env)
			continue
		}
		ordered = append(ordered, env)
	}
	return append(ordered, benches...)
}

func isBench(env string) bool       { return strings.Contains(env, "bench") }
func isFormatStyle(env string) bool { return strings.Contains(env, "format_style") }
func isStyle(env string) bool       { return env == "style" }

// LoadMatrix reads a check directory's matrix file.
func LoadMatrix(checkDir string) (Matrix, error) {
	var m Matrix
	if _, err := toml.DecodeFile(filepath.Join(checkDir, MatrixFile), &m); err != nil {
		return Matrix{}, fmt.Errorf("reading %s for %s: %w", MatrixFile, filepath.Base(checkDir), err)
	}
	return m, nil
}

// Testable returns the checks under root that declare a matrix file, sorted.
func Testable(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading repo root %s: %w", root, err)
	}

	var checks []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), MatrixFile)); err == nil {
			checks = append(checks, entry.Name())
		}
	}
	sort.Strings(checks)
	return checks, nil
}

// Changed returns the top-level directories touched relative to the merge
// base with baseBranch, including untracked files.
func Changed(ctx context.Context, root, baseBranch string) ([]string, error) {
	diff, err := gitLines(ctx, root, "diff", "--name-only", baseBranch+"...")
	if err != nil {
		return nil, err
	}
	untracked, err := gitLines(ctx, root, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var changed []string
	for _, file := range append(diff, untracked...) {
		dir, _, _ := strings.Cut(file, "/")
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		changed = append(changed, dir)
	}
	sort.Strings(changed)
	return changed, nil
}

func gitLines(ctx context.Context, root string, args ...string) ([]string, error) {
	spec := &proc.Spec{
		Argv: append([]string{"git"}, args...),
		Dir:  root,
	}
	result, err := proc.Run(ctx, spec, nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited with %d: %s", spec.Display(), result.ExitCode, strings.TrimSpace(result.Output))
	}

	var lines []string
	for _, line := range strings.Split(result.Output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Filters selects which environments Resolve keeps per check.
type Filters struct {
	// Style keeps only the lint environment.
	Style bool
	// FormatStyle keeps only the formatter environment.
	FormatStyle bool
	// Benchmark keeps only benchmark environments.
	Benchmark bool
	// Every keeps everything, ignoring selectors.
	Every bool
	// ChangedOnly drops checks untouched relative to the base branch.
	ChangedOnly bool
	// Sort orders environments for display.
	Sort bool
}

// CheckEnvs pairs a check with its selected environments. Envs may be
// empty when the filters match nothing the check offers. Coverage carries
// the matrix's coverage gate so callers need not reload it.
type CheckEnvs struct {
	Check    string
	Envs     []string
	Coverage bool
}

// Resolve expands check arguments into ordered (check, envs) pairs.
// Arguments take the form "check" or "check:env1,env2"; unknown selector
// entries are dropped. Without arguments, the changed testable checks are
// used. Unknown and duplicate checks are skipped.
func Resolve(ctx context.Context, root, baseBranch string, args []string, f Filters) ([]CheckEnvs, error) {
	testableList, err := Testable(root)
	if err != nil {
		return nil, err
	}
	testable := toSet(testableList)

	var changed map[string]bool
	if len(args) == 0 || f.ChangedOnly {
		changedList, err := Changed(ctx, root, baseBranch)
		if err != nil {
			return nil, err
		}
		changed = toSet(changedList)
	}

	if len(args) == 0 {
		for _, check := range testableList {
			if changed[check] {
				args = append(args, check)
			}
		}
	}

	seen := map[string]bool{}
	var resolved []CheckEnvs
	for _, arg := range args {
		check, selector, _ := strings.Cut(arg, ":")
		logutil.Debug("resolving environments", "check", check, "selector", selector)

		if seen[check] || !testable[check] {
			continue
		}
		if f.ChangedOnly && !changed[check] {
			continue
		}
		seen[check] = true

		matrix, err := LoadMatrix(filepath.Join(root, check))
		if err != nil {
			return nil, err
		}
		available := matrix.Available(f.Sort)

		var selected []string
		switch {
		case f.Style:
			selected = filter(available, isStyle)
		case f.FormatStyle:
			selected = filter(available, isFormatStyle)
		case f.Benchmark:
			selected = filter(available, isBench)
		case f.Every:
			selected = available
		case selector != "":
			availableSet := toSet(available)
			for _, env := range strings.Split(selector, ",") {
				if availableSet[env] {
					selected = append(selected, env)
				}
			}
		default:
			selected = filter(available, func(env string) bool {
				return !isBench(env) && !isFormatStyle(env)
			})
		}

		resolved = append(resolved, CheckEnvs{
			Check:    check,
			Envs:     selected,
			Coverage: matrix.CoverageEnabled(),
		})
	}
	return resolved, nil
}

func filter(envs []string, keep func(string) bool) []string {
	var out []string
	for _, env := range envs {
		if keep(env) {
			out = append(out, env)
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
