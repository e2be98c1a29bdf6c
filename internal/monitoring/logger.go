// Package monitoring holds the diagnostic loggers and metrics shared by the
// phonon and interaction packages.
package monitoring

import (
	"io"
	"log"
	"log/slog"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var structured atomic.Pointer[slog.Logger]

// Logger returns the structured logger used for engine lifecycle events.
// It is slog.Default() until SetSlogger is called.
func Logger() *slog.Logger {
	if l := structured.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// SetSlogger replaces the structured logger. Passing nil discards all records.
func SetSlogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	structured.Store(l)
}
