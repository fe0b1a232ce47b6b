package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/ingest"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored triangles as CSV",
		Long: `Export writes stored triangles as CSV in the same column layout the
import command reads, in insertion order.

Examples:
  # Everything to stdout
  triangledb export

  # Triangles that involve node alice, written to a file
  triangledb export --node alice -o alice.csv

  # Only triangles that use the friend relation somewhere
  triangledb export --relation friend`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Write CSV to the specified file path")
	cmd.Flags().String("node", "", "Only triangles containing this node in any position")
	cmd.Flags().String("relation", "", "Only triangles using this relation type")
	cmd.Flags().IntP("limit", "l", 0, "Maximum number of triangles (0 = all)")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	var (
		filter database.Filter
		err    error
	)

	if filter.Node, err = cmd.Flags().GetString("node"); err != nil {
		return err
	}
	if filter.Relation, err = cmd.Flags().GetString("relation"); err != nil {
		return err
	}
	if filter.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if filter.Limit < 0 {
		return fmt.Errorf("limit must not be negative: %d", filter.Limit)
	}

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	_, logger, db, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	triangles, err := database.NewTriangleStore(db).List(commandContext(cmd), filter)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, outputPath)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // closed explicitly below on success

	if err := ingest.WriteCSV(out, triangles); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	if outputPath != "" {
		if err := closeOut(); err != nil {
			return fmt.Errorf("failed to close output file: %w", err)
		}
		logger.Info("triangles exported", "path", outputPath, "count", len(triangles))
	}
	return nil
}
