package harness

import (
	"fmt"
	"io"
	"os"
	"testing"
	"time"
)

// StepLogger narrates an e2e run as numbered steps with per-assertion
// outcomes, for example:
//
//	[10:23:45.123] STEP 1: running the clickhouse check
//	    result: captured 42 metric name(s)
//	    assert metric clickhouse.uptime ... ok
//
// It writes to stderr only under -v, so a quiet `go test` stays quiet.
type StepLogger struct {
	t     *testing.T
	out   io.Writer
	start time.Time
	step  int
}

// NewStepLogger creates a logger bound to the test's lifetime.
func NewStepLogger(t *testing.T) *StepLogger {
	t.Helper()

	l := &StepLogger{t: t, out: io.Discard, start: time.Now()}
	if testing.Verbose() {
		l.out = os.Stderr
	}
	return l
}

// Step starts the next numbered step.
func (l *StepLogger) Step(format string, args ...any) {
	l.t.Helper()
	l.step++
	l.stamped(fmt.Sprintf("STEP %d: %s", l.step, fmt.Sprintf(format, args...)))
}

// Result reports the outcome of the current step.
func (l *StepLogger) Result(format string, args ...any) {
	l.t.Helper()
	l.indented("result: " + fmt.Sprintf(format, args...))
}

// AgentState summarizes what the last check run captured.
func (l *StepLogger) AgentState(metrics, serviceChecks int) {
	l.t.Helper()
	l.indented(fmt.Sprintf("agent state: %d metric point(s), %d service check(s)", metrics, serviceChecks))
}

// Assertion reports one assertion outcome, such as kind "metric" with
// subject "clickhouse.uptime".
func (l *StepLogger) Assertion(kind, subject string, ok bool) {
	l.t.Helper()
	verdict := "FAILED"
	if ok {
		verdict = "ok"
	}
	l.indented(fmt.Sprintf("assert %s %s ... %s", kind, subject, verdict))
}

func (l *StepLogger) Info(format string, args ...any) {
	l.t.Helper()
	l.stamped("INFO: " + fmt.Sprintf(format, args...))
}

func (l *StepLogger) Error(format string, args ...any) {
	l.t.Helper()
	l.stamped("ERROR: " + fmt.Sprintf(format, args...))
}

// Elapsed reports time since the logger was created. The environment
// registers it as a test cleanup.
func (l *StepLogger) Elapsed() {
	l.t.Helper()
	l.stamped("elapsed: " + time.Since(l.start).Round(time.Millisecond).String())
}

func (l *StepLogger) stamped(line string) {
	fmt.Fprintf(l.out, "[%s] %s\n", time.Now().Format("15:04:05.000"), line)
}

func (l *StepLogger) indented(line string) {
	fmt.Fprintf(l.out, "    %s\n", line)
}
