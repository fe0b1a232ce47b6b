// Package model defines the value types shared by the storage layer, the
// ingestion pipeline and the report writers.
//
// This package contains the following main types:
//   - Triangle: Three nodes joined by three typed, weighted relations
//   - NodeProgress and Progress: Per-node processing state and its aggregate
//   - Statistics: Aggregates computed over the stored triangles
//   - Snapshot: One persisted statistics record for a run
//
// The types carry no storage logic. They are serializable to JSON so that
// reports and snapshot payloads share a single representation.
package model
