// Package log provides context-aware logging for gitks.
//
// A Logger is constructed once by the CLI and carried through the context.
// There is no package-level logger; code that has no logger attached to its
// context logs to a discarding one.
package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Fields holds structured key/value pairs attached to a log entry.
type Fields = logrus.Fields

// Logger provides user-facing output, leveled structured logging and verbose
// command logging.
//
// The minimum level is Info, Debug when verbose and Error when quiet. Quiet
// wins over verbose.
type Logger struct {
	out     io.Writer
	verbose bool
	quiet   bool
	entries *logrus.Logger
}

// New creates a new logger writing to out.
func New(out io.Writer, verbose, quiet bool) *Logger {
	entries := logrus.New()
	entries.SetOutput(out)
	entries.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	switch {
	case quiet:
		entries.SetLevel(logrus.ErrorLevel)
	case verbose:
		entries.SetLevel(logrus.DebugLevel)
	default:
		entries.SetLevel(logrus.InfoLevel)
	}
	return &Logger{out: out, verbose: verbose, quiet: quiet, entries: entries}
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context.
// Returns a no-op logger if none is attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return New(io.Discard, false, true)
}

// Printf writes formatted output.
// Suppressed when quiet.
func (l *Logger) Printf(format string, args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintf(l.out, format, args...)
}

// Println writes a line of output.
// Suppressed when quiet.
func (l *Logger) Println(args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintln(l.out, args...)
}

// Command logs an external command execution and returns a func that
// records how long it took. Only prints when verbose mode is enabled.
func (l *Logger) Command(dir, name string, args ...string) func(time.Duration) {
	if !l.IsVerbose() {
		return func(time.Duration) {}
	}
	line := "$ " + strings.TrimSpace(name+" "+strings.Join(args, " "))
	if dir != "" {
		line = "[" + dir + "] " + line
	}
	return func(d time.Duration) {
		fmt.Fprintf(l.out, "%s (%s)\n", line, d.Round(time.Millisecond))
	}
}

// Debug logs msg with key/value fields at debug level.
func (l *Logger) Debug(msg string, kv ...any) {
	l.entries.WithFields(toFields(kv)).Debug(msg)
}

// Info logs msg with key/value fields at info level.
func (l *Logger) Info(msg string, kv ...any) {
	l.entries.WithFields(toFields(kv)).Info(msg)
}

// Warn logs msg with key/value fields at warn level.
func (l *Logger) Warn(msg string, kv ...any) {
	l.entries.WithFields(toFields(kv)).Warn(msg)
}

// Error logs msg with key/value fields at error level.
func (l *Logger) Error(msg string, kv ...any) {
	l.entries.WithFields(toFields(kv)).Error(msg)
}

// IsVerbose returns true if verbose mode is enabled and not overridden by quiet.
func (l *Logger) IsVerbose() bool {
	return l.verbose && !l.quiet
}

// Quiet returns true if quiet mode is enabled.
func (l *Logger) Quiet() bool {
	return l.quiet
}

// Writer returns the underlying writer.
func (l *Logger) Writer() io.Writer {
	return l.out
}

// toFields pairs up kv. A trailing key without a value is dropped.
func toFields(kv []any) Fields {
	fields := make(Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
