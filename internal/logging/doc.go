// Package logging builds slog loggers for SubLime with console and JSON
// output formats, shared attribute helpers, and the standardized field
// names used across the correction pipeline.
package logging
