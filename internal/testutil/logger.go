// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"time"
)

// Epoch is the fixed starting time used by tests with a mock clock
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// NopLogger returns a logger that discards all output.
// Use this in tests to avoid log noise.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// CaptureLogger returns a logger writing JSON lines at debug level to w
func CaptureLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
