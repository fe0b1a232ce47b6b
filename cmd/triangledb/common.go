package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/triangledb/internal/config"
	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/log"
	"github.com/nao1215/triangledb/internal/report"
)

// lookupFlag finds a flag on the command or, when the command runs
// detached from the root in tests, on the root's persistent flags.
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.Root().PersistentFlags().Lookup(name)
}

// buildConfig layers defaults, the config file, the environment and the
// global flags, then validates the result.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath := ""
	if f := lookupFlag(cmd, "config"); f != nil {
		configPath = f.Value.String()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if f := lookupFlag(cmd, "db"); f != nil && f.Changed {
		cfg.DBPath = f.Value.String()
	}
	if f := lookupFlag(cmd, "verbose"); f != nil && f.Changed {
		cfg.Verbose = f.Value.String() == "true"
	}
	if f := lookupFlag(cmd, "log-json"); f != nil && f.Changed {
		cfg.LogJSON = f.Value.String() == "true"
	}

	return cfg, nil
}

// setupLogger creates a structured logger based on the configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	return log.New(os.Stderr, log.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogJSON,
	})
}

// openDatabase opens the configured database, creating it if needed.
func openDatabase(cfg *config.Config, logger *slog.Logger) (*database.DB, error) {
	opts := database.DefaultOptions()
	opts.BusyTimeout = cfg.BusyTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.RetryInterval = cfg.RetryInterval
	opts.Logger = logger

	db, err := database.Open(cfg.DBPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", cfg.DBPath)
	return db, nil
}

// prepare builds the configuration, lets each apply hook layer
// command-specific flags on top, validates the result, sets up logging and
// opens the database. Callers must Close the returned database.
func prepare(cmd *cobra.Command, apply ...func(*config.Config) error) (*config.Config, *slog.Logger, *database.DB, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, fn := range apply {
		if err := fn(cfg); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openOutput returns the report destination: the named file, created with
// its parent directories, or the command's stdout when path is empty.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter selects the writer for the configured output format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// addFormatFlags registers the --json, --markdown and --output flags.
func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write output to the specified file path (creates directories if needed)")
}

// formatFlags returns a prepare hook that copies the format flags into the
// configuration.
func formatFlags(cmd *cobra.Command) func(*config.Config) error {
	return func(cfg *config.Config) error {
		return readFormatFlags(cmd, cfg)
	}
}

// readFormatFlags copies the format flags into cfg. The caller validates.
func readFormatFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	return err
}
