// Package console provides the styled terminal output used by idev commands.
//
// Commands report progress with Waiting/Info lines, end with Success or
// Abort, and emit Debug lines only when debug output is enabled. Styling
// degrades to plain text when color is off.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Bold(true)
	debugStyle   = lipgloss.NewStyle().Faint(true)
)

var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr

	colorOn = isTerminal()
	debugOn = false

	// Replaced in tests so Abort paths can be exercised.
	exitFunc = os.Exit
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SetOutput redirects normal output (default os.Stdout).
func SetOutput(w io.Writer) {
	out = w
}

// SetErrorOutput redirects failure output (default os.Stderr).
func SetErrorOutput(w io.Writer) {
	errOut = w
}

// SetColorEnabled forces color on or off.
func SetColorEnabled(enabled bool) {
	colorOn = enabled
}

// ColorEnabled reports whether styled output is active.
func ColorEnabled() bool {
	return colorOn
}

// ResolveColor maps the tri-state --color flag value to a forced setting.
// It returns nil for auto, which leaves downstream tools to detect a TTY
// themselves.
func ResolveColor(mode string) (*bool, error) {
	switch mode {
	case "", "auto":
		SetColorEnabled(isTerminal())
		return nil, nil
	case "always":
		forced := true
		SetColorEnabled(true)
		return &forced, nil
	case "never":
		forced := false
		SetColorEnabled(false)
		return &forced, nil
	default:
		return nil, fmt.Errorf("invalid color mode %q (expected auto, always, or never)", mode)
	}
}

// SetDebugEnabled toggles Debug output.
func SetDebugEnabled(enabled bool) {
	debugOn = enabled
}

// SetExitFunc replaces the function Abort calls and returns the previous
// one, letting tests observe exit codes instead of terminating.
func SetExitFunc(fn func(int)) func(int) {
	prev := exitFunc
	exitFunc = fn
	return prev
}

func render(style lipgloss.Style, text string) string {
	if !colorOn {
		return text
	}
	return style.Render(text)
}

func echo(w io.Writer, style lipgloss.Style, format string, a ...any) {
	fmt.Fprintln(w, render(style, fmt.Sprintf(format, a...)))
}

// Success prints a cyan success line.
func Success(format string, a ...any) {
	echo(out, successStyle, format, a...)
}

// Info prints a bold informational line.
func Info(format string, a ...any) {
	echo(out, infoStyle, format, a...)
}

// Waiting prints a magenta in-progress line.
func Waiting(format string, a ...any) {
	echo(out, waitingStyle, format, a...)
}

// Warning prints a yellow warning line.
func Warning(format string, a ...any) {
	echo(out, warningStyle, format, a...)
}

// Failure prints a red failure line to the error stream.
func Failure(format string, a ...any) {
	echo(errOut, failureStyle, format, a...)
}

// Debug prints a faint "DEBUG: " line when debug output is enabled.
func Debug(format string, a ...any) {
	if !debugOn {
		return
	}
	echo(out, debugStyle, "DEBUG: "+format, a...)
}

// Abort prints a failure line (when text is given) and exits with code.
func Abort(code int, format string, a ...any) {
	if format != "" {
		Failure(format, a...)
	}
	exitFunc(code)
}
