// Package database provides the SQLite-backed bookkeeping layer for a
// triangle-finding traversal.
//
// One database file holds three tables:
//   - triangles: deduplicated triangle records with relation metadata
//   - processed_nodes: per-node processing state used to resume a scan
//   - statistics: append-only per-run statistics snapshots
//
// A DB is the storage handle. It is opened once, passed to the components
// that use it and closed when the process is done:
//
//	db, err := database.Open(path, database.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	tracker := database.NewProgressTracker(db)
//	store := database.NewTriangleStore(db)
//	stats := database.NewStatsEngine(db)
//
// Every mutating call runs in its own transaction. Lock contention
// (SQLITE_BUSY) is retried a bounded number of times with exponential
// backoff before ErrStorageBusy is returned.
//
// We use SQLite via modernc.org/sqlite, a CGO-free driver, so the binary
// cross-compiles and the dataset stays a single file.
package database
