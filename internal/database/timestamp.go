package database

import "time"

// storageTimeFormat is the layout of every timestamp the package writes.
// Fixed-width nanoseconds keep lexical and chronological order identical,
// which ORDER BY on the TEXT columns relies on.
const storageTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp converts t to UTC storage format.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storageTimeFormat)
}

// timestampFormats contains the timestamp formats that may be found in the
// database. The order matters: more specific formats should come first.
var timestampFormats = []string{
	storageTimeFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
