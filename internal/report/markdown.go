package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/triangledb/internal/model"
)

// maxPieSlices is the number of relation types drawn individually in the
// pie chart. The remainder is merged into one "other" slice.
const maxPieSlices = 8

// MarkdownWriter outputs reports in GitHub Flavored Markdown.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteStatistics outputs the statistics report in Markdown format.
func (w *MarkdownWriter) WriteStatistics(report *StatisticsReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeRelations(md, report.Statistics)
	w.writeTopNodes(md, report.Statistics)
	w.writeProgress(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs the snapshot history as a table.
func (w *MarkdownWriter) WriteHistory(snapshots []model.Snapshot) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Snapshot History")
	md.PlainText("")

	if len(snapshots) == 0 {
		md.Note("No snapshots recorded yet.")
		md.PlainText("")
	} else {
		rows := make([][]string, len(snapshots))
		for i, s := range snapshots {
			rows[i] = []string{
				strconv.FormatInt(s.ID, 10),
				formatTime(s.CreatedAt),
				humanize.Comma(s.TotalTriangles),
				humanize.Comma(s.DistinctNodes),
				s.Duration.String(),
				"`" + s.RunID + "`",
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"ID", "Created", "Triangles", "Nodes", "Duration", "Run"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeHeader writes the title and the totals table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *StatisticsReport) {
	stats := report.Statistics

	md.H1("Triangle Statistics")
	md.PlainText("")

	rows := [][]string{
		{"Database", "`" + report.Database + "`"},
		{"Generated", formatTime(report.GeneratedAt)},
		{"Triangles", humanize.Comma(stats.TotalTriangles)},
		{"Distinct Nodes", humanize.Comma(stats.TotalNodesInvolved)},
	}
	if !stats.IsEmpty() {
		rows = append(rows,
			[]string{"Weight Range", formatWeight(stats.MinWeight) + " .. " + formatWeight(stats.MaxWeight)},
			[]string{"Avg Weight A→B", formatWeight(stats.SlotAverageWeights.AToB)},
			[]string{"Avg Weight C→B", formatWeight(stats.SlotAverageWeights.CToB)},
			[]string{"Avg Weight A→C", formatWeight(stats.SlotAverageWeights.AToC)},
		)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if stats.IsEmpty() {
		md.Note("No triangles stored yet.")
		md.PlainText("")
	}
}

// writeRelations writes the relation type table and pie chart.
func (w *MarkdownWriter) writeRelations(md *markdown.Markdown, stats model.Statistics) {
	if len(stats.PerRelationType) == 0 {
		return
	}

	md.H2("Relation Types")
	md.PlainText("")

	types := stats.RelationTypes()
	rows := make([][]string, len(types))
	for i, rel := range types {
		rs := stats.PerRelationType[rel]
		rows[i] = []string{"`" + rel + "`", humanize.Comma(rs.Count), formatWeight(rs.AvgWeight)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Relation", "Appearances", "Avg Weight"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, stats, types)
}

// writePieChart writes a mermaid pie chart of relation type appearances.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, stats model.Statistics, types []string) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Relation Type Distribution"),
		piechart.WithShowData(true),
	)

	var other int64
	for i, rel := range types {
		count := stats.PerRelationType[rel].Count
		if i < maxPieSlices {
			chart.LabelAndIntValue(rel, uint64(count)) //nolint:gosec // counts are never negative
			continue
		}
		other += count
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other)) //nolint:gosec // counts are never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeTopNodes writes the source nodes heading the most triangles.
func (w *MarkdownWriter) writeTopNodes(md *markdown.Markdown, stats model.Statistics) {
	if len(stats.TopSourceNodes) == 0 {
		return
	}

	md.H2("Top Source Nodes")
	md.PlainText("")

	rows := make([][]string, len(stats.TopSourceNodes))
	for i, nc := range stats.TopSourceNodes {
		rows[i] = []string{strconv.Itoa(i + 1), "`" + truncateString(nc.Node, 60) + "`", humanize.Comma(nc.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Node", "Triangles"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeProgress writes the traversal progress section.
func (w *MarkdownWriter) writeProgress(md *markdown.Markdown, report *StatisticsReport) {
	p := report.Progress

	md.H2("Progress")
	md.PlainText("")

	last := "-"
	if p.HasResumePoint() {
		last = "`" + p.LastNode + "` at " + formatTime(p.LastTimestamp)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Completed Nodes", humanize.Comma(p.CompletedCount)},
			{"In Progress", humanize.Comma(p.InProgressCount)},
			{"Last Completed", last},
		},
	})
	md.PlainText("")

	if len(report.InProgressNodes) > 0 {
		md.Warningf(
			"%d node(s) were left in progress by an interrupted run and will be retried.",
			len(report.InProgressNodes),
		)
		md.PlainText("")
		md.Details("Nodes to retry", joinCode(report.InProgressNodes))
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by triangledb*")
}

func joinCode(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}
