// Package cli implements the setupdb command-line interface.
//
// The CLI is built using cobra and logs through charmbracelet/log. Results
// meant for other programs go to stdout; logs, progress and summaries go to
// stderr, so the output of "setupdb resolve" can be captured directly:
//
//	lib=$(setupdb resolve Npgsql)
//
// # Commands
//
//   - resolve: Download a package and its dependencies, print its library path
//   - cache: Inspect or clear the package directory and the index cache
//   - config: Print the effective configuration
//   - version: Print build information
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context so deeper layers log under the same run.
//
// # Exit codes
//
// [ExitCode] maps an error returned by the root command to 0 (success), 1
// (resolution failure), 2 (usage error) or 130 (interrupted).
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Resolved Npgsql 8.0.3 (1.234s)"
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append([]any{"elapsed", p.elapsed()}, keyvals...)...)
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
// The logger is also registered with charmbracelet/log's context helpers so
// library packages pick it up through log.FromContext.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return log.WithContext(context.WithValue(ctx, loggerKey, l), l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
