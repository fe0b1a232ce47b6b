package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/model"
	"github.com/nao1215/triangledb/internal/report"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo describes the binary and the on-disk formats it reads and
// writes. Two builds with the same DatabaseSchema share database files.
type buildInfo struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	Built           string `json:"built"`
	GoVersion       string `json:"go_version"`
	DatabaseSchema  int    `json:"database_schema"`
	SnapshotPayload int    `json:"snapshot_payload"`
}

// currentBuild collects the build information of the running binary.
func currentBuild() buildInfo {
	return buildInfo{
		Version:         getVersion(),
		Commit:          getCommit(),
		Built:           getDate(),
		GoVersion:       runtime.Version(),
		DatabaseSchema:  database.SchemaVersion,
		SnapshotPayload: model.SnapshotSchemaVersion,
	}
}

// getVersion returns version string.
// Priority: ldflags > debug.ReadBuildInfo > "(devel)"
func getVersion() string {
	if version != "" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "(devel)"
}

// buildSetting returns a VCS setting recorded by the Go toolchain.
func buildSetting(key string) (string, bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range bi.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// getCommit returns the short commit hash, with a "-dirty" suffix when the
// binary was built from a modified tree.
func getCommit() string {
	if commit != "" {
		return commit
	}
	rev, ok := buildSetting("vcs.revision")
	if !ok {
		return "unknown"
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if modified, _ := buildSetting("vcs.modified"); modified == "true" {
		rev += "-dirty"
	}
	return rev
}

// getDate returns build date.
func getDate() string {
	if date != "" {
		return date
	}
	if t, ok := buildSetting("vcs.time"); ok {
		return t
	}
	return "unknown"
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build and storage format versions",
		Long: `Version prints the triangledb release and commit together with the
database schema and snapshot payload versions this binary uses.

A database written by a newer schema than the one printed here cannot be
opened; compare the numbers before copying databases between machines.`,
		Args: cobra.NoArgs,
		RunE: runVersionCmd,
	}

	cmd.Flags().Bool("json", false, "Print the information as JSON")

	return cmd
}

// runVersionCmd executes the version command.
func runVersionCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	info := currentBuild()
	if asJSON {
		_, err := report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint()).WriteValue(info)
		return err
	}
	printBuildInfo(cmd.OutOrStdout(), info)
	return nil
}

func printBuildInfo(w io.Writer, info buildInfo) {
	fmt.Fprintf(w, "triangledb %s\n", info.Version)
	fmt.Fprintf(w, "  commit:           %s\n", info.Commit)
	fmt.Fprintf(w, "  built:            %s\n", info.Built)
	fmt.Fprintf(w, "  go:               %s\n", info.GoVersion)
	fmt.Fprintf(w, "  database schema:  %d\n", info.DatabaseSchema)
	fmt.Fprintf(w, "  snapshot payload: %d\n", info.SnapshotPayload)
}
