package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for triangledb.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triangledb",
		Short: "Persistent store for graph triangle searches",
		Long: `triangledb stores the triangles found by a graph traversal, tracks which
nodes have been visited so that an interrupted traversal can resume, and
records statistics snapshots for every run.

Configuration is read from .triangledb (current or home directory), then
TRIANGLEDB_* environment variables, then command line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("db", "D", "",
		"Database file path (default: triangles.db in the XDG data directory)")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .triangledb in current or home directory)")

	// Add subcommands
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewSnapshotCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
