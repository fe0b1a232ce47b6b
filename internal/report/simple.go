package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/triangledb/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose lists every in-progress node instead of a count.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteStatistics outputs the statistics report in human-readable format.
func (w *SimpleWriter) WriteStatistics(report *StatisticsReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "TRIANGLE STATISTICS")
	fmt.Fprintf(&sb, "Database:       %s\n", report.Database)
	fmt.Fprintf(&sb, "Generated:      %s\n\n", formatTime(report.GeneratedAt))

	w.writeTotals(&sb, report.Statistics)
	w.writeRelations(&sb, report.Statistics)
	w.writeTopNodes(&sb, report.Statistics)
	w.writeProgress(&sb, report)

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per snapshot.
func (w *SimpleWriter) WriteHistory(snapshots []model.Snapshot) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "SNAPSHOT HISTORY")
	if len(snapshots) == 0 {
		sb.WriteString("  No snapshots recorded\n\n")
	}
	for _, s := range snapshots {
		fmt.Fprintf(&sb, "  #%-5d %s  %s triangles  %s nodes  took %s  run %s\n",
			s.ID,
			formatTime(s.CreatedAt),
			humanize.Comma(s.TotalTriangles),
			humanize.Comma(s.DistinctNodes),
			s.Duration,
			s.RunID,
		)
	}
	if len(snapshots) > 0 {
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", (ruleWidth-len(title))/2))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, stats model.Statistics) {
	w.writeSection(sb, "TOTALS")

	fmt.Fprintf(sb, "  Triangles:      %s\n", humanize.Comma(stats.TotalTriangles))
	fmt.Fprintf(sb, "  Distinct nodes: %s\n", humanize.Comma(stats.TotalNodesInvolved))
	if !stats.IsEmpty() {
		fmt.Fprintf(sb, "  Weight range:   %s .. %s\n", formatWeight(stats.MinWeight), formatWeight(stats.MaxWeight))
		fmt.Fprintf(sb, "  Avg weight:     A->B %s   C->B %s   A->C %s\n",
			formatWeight(stats.SlotAverageWeights.AToB),
			formatWeight(stats.SlotAverageWeights.CToB),
			formatWeight(stats.SlotAverageWeights.AToC),
		)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRelations(sb *strings.Builder, stats model.Statistics) {
	if len(stats.PerRelationType) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "RELATION TYPES")

	if len(stats.PerRelationType) == 0 {
		sb.WriteString("  No relation types\n\n")
		return
	}
	for _, rel := range stats.RelationTypes() {
		rs := stats.PerRelationType[rel]
		fmt.Fprintf(sb, "  %-30s %12s   avg %s\n",
			truncateString(rel, 30), humanize.Comma(rs.Count), formatWeight(rs.AvgWeight))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTopNodes(sb *strings.Builder, stats model.Statistics) {
	if len(stats.TopSourceNodes) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "TOP SOURCE NODES")

	if len(stats.TopSourceNodes) == 0 {
		sb.WriteString("  No source nodes\n\n")
		return
	}
	for i, nc := range stats.TopSourceNodes {
		fmt.Fprintf(sb, "  %2d. %-30s %s\n", i+1, truncateString(nc.Node, 30), humanize.Comma(nc.Count))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProgress(sb *strings.Builder, report *StatisticsReport) {
	w.writeSection(sb, "PROGRESS")

	p := report.Progress
	fmt.Fprintf(sb, "  Completed nodes:   %s\n", humanize.Comma(p.CompletedCount))
	fmt.Fprintf(sb, "  In progress:       %s\n", humanize.Comma(p.InProgressCount))
	if p.HasResumePoint() {
		fmt.Fprintf(sb, "  Last completed:    %s at %s\n", p.LastNode, formatTime(p.LastTimestamp))
	} else {
		sb.WriteString("  Last completed:    -\n")
	}

	if len(report.InProgressNodes) > 0 {
		if w.verbose {
			sb.WriteString("\n  Nodes to retry:\n")
			for _, node := range report.InProgressNodes {
				fmt.Fprintf(sb, "    [~] %s\n", node)
			}
		} else {
			fmt.Fprintf(sb, "  Nodes to retry:    %d (use --verbose to list)\n", len(report.InProgressNodes))
		}
	}
	sb.WriteString("\n")
}

// formatWeight renders a weight with thousands separators and at most two
// decimals.
func formatWeight(w float64) string {
	return humanize.CommafWithDigits(w, 2)
}
