package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSchemaCmd creates the schema command.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create or upgrade the database schema",
		Long: `Schema opens the configured database, creating the file and its parent
directories if needed, and makes sure every table and index exists.
Running it on an existing database changes nothing.`,
		Args: cobra.NoArgs,
		RunE: runSchemaCmd,
	}
}

// runSchemaCmd executes the schema command.
func runSchemaCmd(cmd *cobra.Command, _ []string) error {
	_, _, db, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := commandContext(cmd)
	if err := db.Initialize(ctx); err != nil {
		return err
	}

	userVersion, err := db.UserVersion(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Database ready: %s (schema version %d)\n", db.Path(), userVersion)
	return nil
}
