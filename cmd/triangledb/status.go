package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/model"
	"github.com/nao1215/triangledb/internal/report"
)

// statusView is the JSON shape of the status command.
type statusView struct {
	Database        string         `json:"database"`
	Progress        model.Progress `json:"progress"`
	InProgressNodes []string       `json:"in_progress_nodes"`

	// LatestSnapshot is nil until a snapshot has been recorded.
	LatestSnapshot *model.Snapshot `json:"latest_snapshot"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show traversal progress",
		Long: `Status shows how many nodes have been completed, the node a resumed
traversal continues after, and the nodes that were claimed but never
completed. Those nodes are retried by the next run.`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output JSON")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg, _, db, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := commandContext(cmd)
	tracker := database.NewProgressTracker(db)

	progress, err := tracker.Progress(ctx)
	if err != nil {
		return err
	}
	pending, err := tracker.InProgressNodes(ctx)
	if err != nil {
		return err
	}

	latest, err := database.NewStatsEngine(db).LatestSnapshot(ctx)
	if err != nil {
		return err
	}

	view := statusView{
		Database:        db.Path(),
		Progress:        progress,
		InProgressNodes: pending,
		LatestSnapshot:  latest,
	}

	if asJSON {
		_, err := report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint()).WriteValue(view)
		return err
	}

	printStatus(cmd.OutOrStdout(), view, cfg.Verbose)
	return nil
}

// printStatus writes the human-readable status.
func printStatus(w io.Writer, v statusView, verbose bool) {
	p := v.Progress

	fmt.Fprintf(w, "Database:        %s\n", v.Database)
	fmt.Fprintf(w, "Completed nodes: %s\n", humanize.Comma(p.CompletedCount))
	fmt.Fprintf(w, "In progress:     %s\n", humanize.Comma(p.InProgressCount))

	if p.HasResumePoint() {
		fmt.Fprintf(w, "Resume after:    %s (completed %s, %s)\n",
			p.LastNode,
			p.LastTimestamp.UTC().Format(time.RFC3339),
			humanize.Time(p.LastTimestamp),
		)
	} else {
		fmt.Fprintln(w, "Resume after:    - (no node completed yet)")
	}

	if s := v.LatestSnapshot; s != nil {
		fmt.Fprintf(w, "Last snapshot:   #%d, %s triangles (%s)\n",
			s.ID, humanize.Comma(s.TotalTriangles), humanize.Time(s.CreatedAt))
	}

	if len(v.InProgressNodes) == 0 {
		return
	}
	if !verbose && len(v.InProgressNodes) > 10 {
		fmt.Fprintf(w, "\n%d nodes to retry (use --verbose to list all)\n", len(v.InProgressNodes))
		return
	}
	fmt.Fprintln(w, "\nNodes to retry:")
	for _, node := range v.InProgressNodes {
		fmt.Fprintf(w, "  [~] %s\n", node)
	}
}
