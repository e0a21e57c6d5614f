// Package output renders command results in the text or JSON mode
// selected by command flags. Machine-readable results go to stdout,
// human-oriented tables to stderr so they can be piped apart.
package output

import (
	"io"
	"os"
	"sync/atomic"
)

var jsonMode atomic.Bool

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetJSON switches between JSON and text output.
func SetJSON(enabled bool) {
	jsonMode.Store(enabled)
}

// IsJSON reports whether JSON output is active.
func IsJSON() bool {
	return jsonMode.Load()
}

// SetWriters redirects the output streams, primarily for tests.
func SetWriters(out, err io.Writer) {
	if out != nil {
		stdout = out
	}
	if err != nil {
		stderr = err
	}
}
