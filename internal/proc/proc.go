// Package proc executes the external commands idev orchestrates: the task
// runner, coverage tooling, git, and the agent binary in e2e tests.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/joshholl/integrations-core/internal/logutil"
)

// Spec describes a command to execute.
type Spec struct {
	// Raw is the original command string. When Argv is empty and Shell is
	// false it is split with shell-style quoting rules.
	Raw string
	// Argv is the explicit argument vector, taking precedence over Raw.
	Argv []string
	// Dir is the working directory ("" means inherit).
	Dir string
	// Env holds KEY=VALUE entries appended to the inherited environment.
	Env []string
	// Shell runs Raw through the system shell.
	Shell bool
}

// Display returns the human-readable command line for logging.
func (s *Spec) Display() string {
	if len(s.Argv) > 0 {
		return strings.Join(s.Argv, " ")
	}
	return s.Raw
}

// Result captures the outcome of a completed command.
type Result struct {
	// Output is the combined stdout+stderr of the command.
	Output string
	// ExitCode is the command's exit status. Commands killed by a signal
	// (context cancellation included) report -1.
	ExitCode int
	// Duration is the wall-clock execution time.
	Duration time.Duration
}

// Run executes the command described by spec. Combined output is captured
// into the result and mirrored to stream when non-nil. A non-zero exit
// status is reported through Result.ExitCode, not as an error; errors are
// reserved for commands that could not be started.
func Run(ctx context.Context, spec *Spec, stream io.Writer) (*Result, error) {
	cmd, err := buildCmd(ctx, spec)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	var sink io.Writer = &buf
	if stream != nil {
		sink = io.MultiWriter(&buf, stream)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	logutil.Debug("executing command", "cmd", spec.Display(), "dir", spec.Dir)

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{
		Output:   buf.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("running %q: %w", spec.Display(), runErr)
	}
	return result, nil
}

func buildCmd(ctx context.Context, spec *Spec) (*exec.Cmd, error) {
	var cmd *exec.Cmd

	if spec.Shell {
		if strings.TrimSpace(spec.Raw) == "" {
			return nil, fmt.Errorf("empty command")
		}
		shell, flag := systemShell()
		cmd = exec.CommandContext(ctx, shell, flag, spec.Raw)
	} else {
		argv := spec.Argv
		if len(argv) == 0 {
			parsed, err := shellwords.Parse(spec.Raw)
			if err != nil {
				return nil, fmt.Errorf("parsing command %q: %w", spec.Raw, err)
			}
			argv = parsed
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	}

	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Env, spec.Env...)
	}
	return cmd, nil
}

func systemShell() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "sh", "-c"
}
