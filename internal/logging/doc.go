// Package logging assembles the structured slog loggers used by inkframe.
//
// It owns the console and JSON handlers, level parsing, and output plumbing,
// plus helpers that tag log lines with the component name and the request
// correlation ID carried in a context. A no-op logger is provided for tests
// and for wiring code that must not fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same keys.
package logging
