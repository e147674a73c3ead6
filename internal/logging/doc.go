// Package logging builds slog loggers for the daemon and CLI.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for log shipping. Attr helpers and standardized field keys
// keep structured output consistent across components; WithContext derives
// fields (path id, provider, task, correlation id) from context annotations
// set by internal/services.
package logging
