// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards all records. Enabled returns
// false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for copybit and its sub-packages.
// By default copybit produces no log output.
//
// The logger is handed to the hardware driver, the memory pool and the
// address resolver when a session opens, so SetLogger should be called
// before Session.Open. Pass nil to restore the silent default.
//
// Log levels used by copybit:
//   - [slog.LevelDebug]: per-region geometry, ioctl steps, staging copies
//   - [slog.LevelInfo]: session open and close, hardware revision
//   - [slog.LevelWarn]: non-fatal failures (release errors, teardown
//     errors, cache invalidation, missing carve-out)
//   - [slog.LevelError]: blits that fail as a whole
//
// Example:
//
//	copybit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by copybit.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
