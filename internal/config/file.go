package config

import "time"

// File represents the structure of the .triangledb configuration file.
//
//	database:
//	  path: /var/lib/triangledb/triangles.db
//	  busyTimeout: 5s
//	  maxRetries: 5
//	import:
//	  concurrency: 8
//	  minWeight: 10
type File struct {
	Database DatabaseSection `yaml:"database,omitempty"`
	Import   ImportSection   `yaml:"import,omitempty"`
	Log      LogSection      `yaml:"log,omitempty"`
}

// DatabaseSection configures the storage handle.
type DatabaseSection struct {
	Path          string        `yaml:"path,omitempty"`
	BusyTimeout   time.Duration `yaml:"busyTimeout,omitempty"`
	RetryInterval time.Duration `yaml:"retryInterval,omitempty"`

	// MaxRetries is a pointer so that an explicit 0 (never retry) can be
	// told apart from an absent key.
	MaxRetries *int `yaml:"maxRetries,omitempty"`
}

// ImportSection configures CSV ingestion.
type ImportSection struct {
	Concurrency         int      `yaml:"concurrency,omitempty"`
	MinWeight           *float64 `yaml:"minWeight,omitempty"`
	MaxTrianglesPerNode int      `yaml:"maxTrianglesPerNode,omitempty"`
}

// LogSection configures logging.
type LogSection struct {
	Verbose bool `yaml:"verbose,omitempty"`
	JSON    bool `yaml:"json,omitempty"`
}
