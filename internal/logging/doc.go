// Package logging builds the slog loggers used across Katha.
//
// Console output goes through charmbracelet/log acting as an slog.Handler;
// JSON output uses slog.JSONHandler with stable key names. Context helpers
// carry request IDs so HTTP handlers and the publication pipeline tag their
// lines the same way.
package logging
