package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/triangledb/internal/database"
)

// defaultHistoryLimit is the number of snapshots history shows by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded statistics snapshots",
		Long: `History lists statistics snapshots, newest first.

Examples:
  triangledb history
  triangledb history --limit 5 --json
  triangledb history --limit 0 --markdown -o history.md`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of snapshots (0 = all)")
	addFormatFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit < 0 {
		return fmt.Errorf("limit must not be negative: %d", limit)
	}

	cfg, _, db, err := prepare(cmd, formatFlags(cmd))
	if err != nil {
		return err
	}
	defer db.Close()

	snapshots, err := database.NewStatsEngine(db).Snapshots(commandContext(cmd), limit)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // closed explicitly below on success

	if _, err := newReportWriter(cfg, out).WriteHistory(snapshots); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	if cfg.ReportFile != "" {
		if err := closeOut(); err != nil {
			return fmt.Errorf("failed to close output file: %w", err)
		}
	}
	return nil
}
