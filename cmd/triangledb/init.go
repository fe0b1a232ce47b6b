package main

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/triangledb/internal/config"
)

//go:embed templates/triangledb.yaml
var configTemplate embed.FS

const templatePath = "templates/triangledb.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a triangledb configuration file",
		Long: `Init writes a .triangledb file holding every setting at its default:
where the database lives, how long to wait on a locked database, the
import weight threshold, the per-node triangle cap and import concurrency.

Settings are read from this file, then from TRIANGLEDB_* environment
variables, then from flags, each overriding the one before.

Examples:
  # Write .triangledb next to your traversal output
  triangledb init

  # Keep the database beside the CSV files instead of the XDG data dir
  triangledb init -o runs/.triangledb && $EDITOR runs/.triangledb

  # Inspect the defaults without writing anything
  triangledb init --print`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Path of the configuration file to write")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing configuration file")
	cmd.Flags().Bool("print", false,
		"Write the configuration to standard output instead of a file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	toStdout, err := cmd.Flags().GetBool("print")
	if err != nil {
		return err
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if toStdout {
		_, err := cmd.OutOrStdout().Write(content)
		return err
	}

	if err := writeConfigFile(outputPath, content, force); err != nil {
		return err
	}
	printInitSummary(cmd.OutOrStdout(), outputPath)
	return nil
}

// writeConfigFile writes content to path, creating parent directories.
// An existing file is only replaced when force is set.
func writeConfigFile(path string, content []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

func printInitSummary(w io.Writer, path string) {
	fmt.Fprintf(w, "Created configuration file: %s\n", path)
	fmt.Fprintf(w, "\nTriangles will be stored in %s\n", config.DefaultDBPath())
	fmt.Fprintln(w, "unless database.path is set in the file.")
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  triangledb schema            create the database")
	fmt.Fprintln(w, "  triangledb import <csv>...   load traversal output")
}
