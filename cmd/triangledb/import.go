package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/triangledb/internal/config"
	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/ingest"
	"github.com/nao1215/triangledb/internal/model"
)

// NewImportCmd creates the import command.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>...",
		Short: "Import triangle CSV files",
		Long: `Import loads triangles from CSV files written by a traversal run.

Each file needs a header with the columns
  A,B,C,A_to_B,C_to_B,A_to_C,A_to_B_weight,C_to_B_weight,A_to_C_weight
in any order. Rows are grouped by their source node (column A) across all
files given in one invocation, so a node split over several files is stored
in full. Nodes already completed by an earlier import are skipped and their
rows reported as skipped, so an interrupted import can simply be run again.
Pass --revisit to store rows for completed nodes as well.

Examples:
  # Import one file
  triangledb import run-1.csv

  # Import several files in parallel and record a snapshot afterwards
  triangledb import --concurrency 8 --snapshot out/*.csv

  # Keep only strong relations
  triangledb import --min-weight 2.5 run-1.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportCmd,
	}

	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of files to import in parallel")
	cmd.Flags().Float64("min-weight", config.DefaultMinWeight,
		"Skip triangles whose smallest relation weight is below this value")
	cmd.Flags().Int("max-per-node", config.DefaultMaxTrianglesPerNode,
		"Maximum triangles stored per source node (0 = unlimited)")
	cmd.Flags().Bool("revisit", false,
		"Also store rows whose source node was completed by an earlier import")
	cmd.Flags().Bool("snapshot", false,
		"Record a statistics snapshot when the import finishes")

	return cmd
}

// applyImportFlags overrides import settings with flags given explicitly.
func applyImportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	if cmd.Flags().Changed("concurrency") {
		if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("min-weight") {
		if cfg.MinWeight, err = cmd.Flags().GetFloat64("min-weight"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("max-per-node") {
		if cfg.MaxTrianglesPerNode, err = cmd.Flags().GetInt("max-per-node"); err != nil {
			return err
		}
	}

	return nil
}

// runImportCmd executes the import command.
func runImportCmd(cmd *cobra.Command, args []string) error {
	takeSnapshot, err := cmd.Flags().GetBool("snapshot")
	if err != nil {
		return err
	}
	revisit, err := cmd.Flags().GetBool("revisit")
	if err != nil {
		return err
	}

	cfg, logger, db, err := prepare(cmd, func(cfg *config.Config) error {
		return applyImportFlags(cmd, cfg)
	})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext(commandContext(cmd))
	defer cancel()

	importer := ingest.New(
		database.NewTriangleStore(db),
		database.NewProgressTracker(db),
		ingest.WithConcurrency(cfg.Concurrency),
		ingest.WithMinWeight(cfg.MinWeight),
		ingest.WithMaxPerNode(cfg.MaxTrianglesPerNode),
		ingest.WithRevisit(revisit),
		ingest.WithLogger(logger),
	)

	result, err := importer.ImportFiles(ctx, args)
	if result != nil {
		printImportResult(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	if takeSnapshot {
		snap, err := database.NewStatsEngine(db).SaveDetailedStatistics(ctx, result.Elapsed, model.Metadata{
			"source":                 "import",
			"files":                  len(args),
			"min_weight_threshold":   cfg.MinWeight,
			"max_triangles_per_node": cfg.MaxTrianglesPerNode,
			"inserted":               result.Total.Inserted,
			"duplicates":             result.Total.Duplicates,
			"filtered":               result.Total.Filtered,
			"capped":                 result.Total.Capped,
			"invalid":                result.Total.Invalid,
			"rejected":               result.Total.Rejected(),
			"skipped_rows":           result.Total.SkippedRows,
		})
		if err != nil {
			return fmt.Errorf("failed to record snapshot: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot #%d recorded (run %s)\n", snap.ID, snap.RunID)
	}

	if failed := result.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d file(s) failed to import", len(failed), len(result.Files))
	}
	return nil
}

// printImportResult writes a per-file summary followed by the totals.
func printImportResult(w io.Writer, result *ingest.Result) {
	for _, f := range result.Files {
		if f.Err != nil {
			fmt.Fprintf(w, "[!] %s: %v\n", f.Path, f.Err)
			continue
		}
		fmt.Fprintf(w, "[+] %s: %s rows, %s inserted, %s duplicates\n",
			f.Path,
			humanize.Comma(int64(f.Rows)),
			humanize.Comma(int64(f.Inserted)),
			humanize.Comma(int64(f.Duplicates)),
		)
	}

	t := result.Total
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rows:             %s\n", humanize.Comma(int64(t.Rows)))
	fmt.Fprintf(w, "Inserted:         %s\n", humanize.Comma(int64(t.Inserted)))
	fmt.Fprintf(w, "Duplicates:       %s\n", humanize.Comma(int64(t.Duplicates)))
	fmt.Fprintf(w, "Invalid:          %s\n", humanize.Comma(int64(t.Invalid)))
	fmt.Fprintf(w, "Filtered:         %s\n", humanize.Comma(int64(t.Filtered)))
	fmt.Fprintf(w, "Capped:           %s\n", humanize.Comma(int64(t.Capped)))
	fmt.Fprintf(w, "Nodes completed:  %s\n", humanize.Comma(int64(t.NodesCompleted)))
	fmt.Fprintf(w, "Nodes skipped:    %s\n", humanize.Comma(int64(t.NodesSkipped)))
	fmt.Fprintf(w, "Skipped rows:     %s\n", humanize.Comma(int64(t.SkippedRows)))
	fmt.Fprintf(w, "Elapsed:          %s\n", result.Elapsed.Round(time.Millisecond))
}
