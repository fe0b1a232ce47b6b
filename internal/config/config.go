package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "triangledb"

	// DefaultDBFile is the database file name inside the XDG data directory.
	DefaultDBFile = "triangles.db"

	// DefaultBusyTimeout is how long SQLite itself waits on a locked database
	// before reporting SQLITE_BUSY. The bounded retry loop starts after that.
	DefaultBusyTimeout = 2 * time.Second

	// DefaultMaxRetries is the number of times a busy transaction is retried.
	DefaultMaxRetries = 3

	// DefaultRetryInterval is the first backoff interval between retries.
	DefaultRetryInterval = 50 * time.Millisecond

	// DefaultConcurrency is the number of CSV files parsed in parallel by
	// the import command. Writes are serialized by the single connection,
	// so higher values mostly help with slow disks.
	DefaultConcurrency = 4

	// DefaultMinWeight keeps every triangle. The traversal that produces the
	// CSV files usually applies its own threshold; this is a second filter.
	DefaultMinWeight = 0.0

	// DefaultMaxTrianglesPerNode of zero means no cap.
	DefaultMaxTrianglesPerNode = 0
)

// Config holds all configuration options for triangledb.
// It is populated from defaults, the YAML config file, the environment and
// CLI flags, in that order, and passed to commands explicitly.
type Config struct {
	// DBPath is the SQLite database file. Defaults to
	// $XDG_DATA_HOME/triangledb/triangles.db.
	DBPath string `env:"TRIANGLEDB_DB_PATH"`

	// BusyTimeout is passed to SQLite as the busy_timeout pragma.
	BusyTimeout time.Duration `env:"TRIANGLEDB_BUSY_TIMEOUT"`

	// MaxRetries bounds how often a transaction that hit a locked
	// database is retried before ErrStorageBusy is reported.
	MaxRetries int `env:"TRIANGLEDB_MAX_RETRIES"`

	// RetryInterval is the first backoff interval between retries.
	RetryInterval time.Duration `env:"TRIANGLEDB_RETRY_INTERVAL"`

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool `env:"TRIANGLEDB_VERBOSE"`

	// LogJSON switches the log handler from text to JSON.
	LogJSON bool `env:"TRIANGLEDB_LOG_JSON"`

	// Concurrency is the number of files the import command parses at once.
	Concurrency int `env:"TRIANGLEDB_CONCURRENCY"`

	// MinWeight drops imported triangles whose smallest relation weight is
	// below the threshold.
	MinWeight float64 `env:"TRIANGLEDB_MIN_WEIGHT"`

	// MaxTrianglesPerNode caps how many triangles are stored per source
	// node during import. Zero disables the cap.
	MaxTrianglesPerNode int `env:"TRIANGLEDB_MAX_TRIANGLES_PER_NODE"`

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .triangledb in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// JSONReport selects JSON output for report commands.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output for report commands.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for reports.
	// When set, the report is written to this file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DBPath:              DefaultDBPath(),
		BusyTimeout:         DefaultBusyTimeout,
		MaxRetries:          DefaultMaxRetries,
		RetryInterval:       DefaultRetryInterval,
		Concurrency:         DefaultConcurrency,
		MinWeight:           DefaultMinWeight,
		MaxTrianglesPerNode: DefaultMaxTrianglesPerNode,
	}
}

// DefaultDBPath returns the database path inside the XDG data directory.
func DefaultDBPath() string {
	return filepath.Join(XDGDataDir(), DefaultDBFile)
}

// XDGDataDir returns the XDG data directory for triangledb.
// On Linux: ~/.local/share/triangledb
// On macOS: ~/Library/Application Support/triangledb
// On Windows: %LOCALAPPDATA%\triangledb
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for triangledb.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile overlays the values set in f onto c. Zero values in f leave c
// unchanged, so a partial file only overrides what it names.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	if f.Database.Path != "" {
		c.DBPath = f.Database.Path
	}
	if f.Database.BusyTimeout != 0 {
		c.BusyTimeout = f.Database.BusyTimeout
	}
	if f.Database.MaxRetries != nil {
		c.MaxRetries = *f.Database.MaxRetries
	}
	if f.Database.RetryInterval != 0 {
		c.RetryInterval = f.Database.RetryInterval
	}

	if f.Import.Concurrency != 0 {
		c.Concurrency = f.Import.Concurrency
	}
	if f.Import.MinWeight != nil {
		c.MinWeight = *f.Import.MinWeight
	}
	if f.Import.MaxTrianglesPerNode != 0 {
		c.MaxTrianglesPerNode = f.Import.MaxTrianglesPerNode
	}

	if f.Log.Verbose {
		c.Verbose = true
	}
	if f.Log.JSON {
		c.LogJSON = true
	}
}

// Validate checks if the configuration is valid.
// It returns the first error found as a sentinel so callers can use
// errors.Is.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return ErrInvalidDBPath
	}

	if c.BusyTimeout < 0 {
		return ErrInvalidBusyTimeout
	}

	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if c.RetryInterval <= 0 {
		return ErrInvalidRetryInterval
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MinWeight < 0 {
		return ErrInvalidMinWeight
	}

	if c.MaxTrianglesPerNode < 0 {
		return ErrInvalidMaxTrianglesPerNode
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
