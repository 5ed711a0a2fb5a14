// Package debug holds the process-wide verbosity switches and the
// structured logger components log through.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// switches is the verbosity state set from the command line. env is the
// ISSUETAG_DEBUG override, read once at startup.
type switches struct {
	env     bool
	verbose bool
	quiet   bool
}

var state = switches{env: os.Getenv("ISSUETAG_DEBUG") != ""}

// Output targets; swapped by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Enabled reports whether debug output is on.
func Enabled() bool { return state.env || state.verbose }

func SetVerbose(verbose bool) { state.verbose = verbose }

func SetQuiet(quiet bool) { state.quiet = quiet }

func IsQuiet() bool { return state.quiet }

// Logf writes to stderr when debug output is on. No newline is added.
func Logf(format string, args ...any) {
	if Enabled() {
		_, _ = fmt.Fprintf(stderr, format, args...)
	}
}

// PrintNormal writes progress text to stdout unless quiet.
func PrintNormal(format string, args ...any) {
	if !state.quiet {
		_, _ = fmt.Fprintf(stdout, format, args...)
	}
}

func PrintlnNormal(args ...any) {
	if !state.quiet {
		_, _ = fmt.Fprintln(stdout, args...)
	}
}

// Level maps the switches onto slog: debug output wins over quiet.
func Level() slog.Level {
	if Enabled() {
		return slog.LevelDebug
	}
	if state.quiet {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Logger returns a text logger on stderr at Level().
func Logger() *slog.Logger {
	return NewLogger(stderr)
}

func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level()}))
}
