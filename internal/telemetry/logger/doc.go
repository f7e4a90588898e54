// Package logger provides structured logging for wsmesh.
//
// It wraps log/slog behind a small Logger interface:
//
//   - logger.go: construction, dynamic level, process-wide default
//   - context.go: logger and connection id propagation through context
//   - redact.go: masking of credentials and signed query strings
//
// Subsystems log through a child logger tagged with a component attribute
// (see Component), so every record carries the (component, message) pair.
package logger
