// Package main provides the entry point for the triangledb CLI.
//
// triangledb persists the output of a graph triangle search: the triangles
// found, which nodes have been visited and per-run statistics. The CLI
// ingests triangle CSV files and inspects the resulting database.
//
// Usage:
//
//	triangledb import triangles.csv
//	triangledb stats --markdown -o stats.md
//
// See --help for all available options.
package main

// main is the entry point for triangledb.
func main() {
	Execute()
}
