package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/report"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print triangle statistics",
		Long: `Stats computes statistics over the stored triangles: totals, distinct
nodes, per relation type counts and mean weights, per slot averages and
the most productive source nodes, followed by the traversal progress.

Output formats:
  (default)   Human-readable text
  --json      JSON for further processing
  --markdown  Markdown with a relation type pie chart

Examples:
  triangledb stats
  triangledb stats --json
  triangledb stats --markdown -o reports/stats.md`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	addFormatFlags(cmd)

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, db, err := prepare(cmd, formatFlags(cmd))
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := commandContext(cmd)
	tracker := database.NewProgressTracker(db)

	stats, err := database.NewStatsEngine(db).Statistics(ctx)
	if err != nil {
		return err
	}
	progress, err := tracker.Progress(ctx)
	if err != nil {
		return err
	}
	pending, err := tracker.InProgressNodes(ctx)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // closed explicitly below on success

	rpt := &report.StatisticsReport{
		GeneratedAt:     time.Now(),
		Database:        db.Path(),
		Statistics:      stats,
		Progress:        progress,
		InProgressNodes: pending,
	}
	if _, err := newReportWriter(cfg, out).WriteStatistics(rpt); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.ReportFile != "" {
		if err := closeOut(); err != nil {
			return fmt.Errorf("failed to close output file: %w", err)
		}
		logger.Info("report written", "path", cfg.ReportFile)
	}
	return nil
}
