package report

import (
	"io"
	"time"

	"github.com/nao1215/triangledb/internal/model"
)

// Writer defines the interface for report output.
// Implementations render statistics and snapshot history in one format.
type Writer interface {
	// WriteStatistics outputs the current statistics and progress.
	// Returns the number of bytes written and any error encountered.
	WriteStatistics(report *StatisticsReport) (int, error)

	// WriteHistory outputs snapshots, newest first.
	WriteHistory(snapshots []model.Snapshot) (int, error)
}

// StatisticsReport is everything the stats and status commands show.
type StatisticsReport struct {
	// GeneratedAt is when the report was computed.
	GeneratedAt time.Time `json:"generated_at"`

	// Database is the path of the database file.
	Database string `json:"database"`

	Statistics model.Statistics `json:"statistics"`
	Progress   model.Progress   `json:"progress"`

	// InProgressNodes are the nodes a resumed traversal has to retry.
	InProgressNodes []string `json:"in_progress_nodes"`
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

// formatTime renders t for humans, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
