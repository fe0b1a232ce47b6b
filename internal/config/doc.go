// Package config provides configuration structures and utilities for
// triangledb. Values are layered: built-in defaults, the YAML config file,
// TRIANGLEDB_* environment variables and finally CLI flags.
package config
