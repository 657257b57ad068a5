// Package logging assembles structured slog loggers and formatting helpers used
// across pressline.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request handlers can tag log
// lines with request and user identifiers. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
