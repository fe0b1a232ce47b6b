// Package log builds the slog loggers used by triangledb.
//
// Node identifiers and relation labels come from untrusted input files and
// end up in log attributes. The Handler in this package wraps any
// slog.Handler and makes such values safe to print:
//   - control characters (newlines, ANSI escapes) are escaped
//   - very long strings are truncated with a marker
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Debug("triangle saved", "a", nodeA, "b", nodeB, "c", nodeC)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
