package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidDBPath is returned when no database path is configured.
	ErrInvalidDBPath = errors.New("invalid database path: must not be empty")

	// ErrInvalidBusyTimeout is returned when the busy timeout is negative.
	// Zero is allowed and makes SQLite fail immediately on a lock.
	ErrInvalidBusyTimeout = errors.New("invalid busy timeout: must be non-negative")

	// ErrInvalidMaxRetries is returned when the retry count is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRetryInterval is returned when the retry interval is not positive.
	ErrInvalidRetryInterval = errors.New("invalid retry interval: must be positive")

	// ErrInvalidConcurrency is returned when the import concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMinWeight is returned when the weight threshold is negative.
	ErrInvalidMinWeight = errors.New("invalid min weight: must be non-negative")

	// ErrInvalidMaxTrianglesPerNode is returned when the per-node cap is negative.
	// Use 0 to disable the cap.
	ErrInvalidMaxTrianglesPerNode = errors.New("invalid max triangles per node: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
