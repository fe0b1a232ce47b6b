// Package ingest loads triangle CSV files into the database the way a graph
// traversal driver does: for each source node it skips the node if it was
// already completed, marks it in progress, stores its triangles and marks it
// processed. Re-running an import over the same files is safe and resumes
// after a crash.
//
// Several files are parsed concurrently with errgroup; every write goes
// through the database package, which serializes them on its single
// connection.
package ingest
