package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/model"
)

// DefaultConcurrency is the number of files imported at once when no
// WithConcurrency option is given.
const DefaultConcurrency = 4

// TriangleSaver stores triangles. *database.TriangleStore implements it.
type TriangleSaver interface {
	SaveTriangle(ctx context.Context, tri model.Triangle) (bool, error)
}

// NodeTracker records per-node progress. *database.ProgressTracker
// implements it.
type NodeTracker interface {
	IsProcessed(ctx context.Context, node string) (bool, error)
	MarkInProgress(ctx context.Context, node string) error
	MarkProcessed(ctx context.Context, node string) error
}

// Counts summarizes what an import did.
type Counts struct {
	// Rows is the number of data rows read.
	Rows int `json:"rows"`

	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`

	// Invalid counts rows rejected by parsing or validation.
	Invalid int `json:"invalid"`

	// Filtered counts triangles below the weight threshold.
	Filtered int `json:"filtered"`

	// Capped counts triangles dropped by the per-node limit.
	Capped int `json:"capped"`

	NodesCompleted int `json:"nodes_completed"`

	// NodesSkipped counts source nodes that were already completed.
	NodesSkipped int `json:"nodes_skipped"`

	// SkippedRows counts rows of already completed nodes that were not
	// imported. WithRevisit imports them instead.
	SkippedRows int `json:"skipped_rows"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Rows += o.Rows
	c.Inserted += o.Inserted
	c.Duplicates += o.Duplicates
	c.Invalid += o.Invalid
	c.Filtered += o.Filtered
	c.Capped += o.Capped
	c.NodesCompleted += o.NodesCompleted
	c.NodesSkipped += o.NodesSkipped
	c.SkippedRows += o.SkippedRows
}

// Rejected is the number of rows that were read but not stored for a
// reason other than duplication or an earlier completed node.
func (c Counts) Rejected() int {
	return c.Invalid + c.Filtered + c.Capped
}

// FileResult is the outcome of importing one file.
type FileResult struct {
	Path string `json:"path"`
	Counts

	// Err is set when the file could not be imported completely. Nodes
	// finished before the error stay completed; a node whose import failed
	// stays in progress and is retried by the next run.
	Err error `json:"-"`
}

// Result is the outcome of ImportFiles.
type Result struct {
	Files   []FileResult  `json:"files"`
	Total   Counts        `json:"total"`
	Elapsed time.Duration `json:"elapsed"`
}

// Failed returns the files that ended with an error.
func (r *Result) Failed() []FileResult {
	failed := make([]FileResult, 0)
	for _, f := range r.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Importer loads triangle CSV files through a TriangleSaver and a
// NodeTracker.
type Importer struct {
	store   TriangleSaver
	tracker NodeTracker

	concurrency int
	minWeight   float64
	maxPerNode  int
	revisit     bool
	logger      *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithConcurrency sets the maximum number of files parsed, and of source
// nodes stored, at once.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.concurrency = n
		}
	}
}

// WithMinWeight drops triangles whose smallest relation weight is below w.
func WithMinWeight(w float64) Option {
	return func(im *Importer) {
		im.minWeight = w
	}
}

// WithMaxPerNode stores at most n triangles per source node per import.
// Zero disables the cap.
func WithMaxPerNode(n int) Option {
	return func(im *Importer) {
		if n >= 0 {
			im.maxPerNode = n
		}
	}
}

// WithRevisit stores the triangles of source nodes that an earlier import
// already completed. Their progress state is left alone. Without it such
// rows are counted as SkippedRows.
func WithRevisit(revisit bool) Option {
	return func(im *Importer) {
		im.revisit = revisit
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) {
		im.logger = logger
	}
}

// New creates an Importer.
func New(store TriangleSaver, tracker NodeTracker, opts ...Option) *Importer {
	im := &Importer{
		store:       store,
		tracker:     tracker,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(im)
	}

	if im.logger == nil {
		im.logger = slog.Default()
	}

	return im
}

// ImportFiles imports every path. Files are parsed concurrently, then the
// rows of all files are merged by source node, so a node found in several
// files is claimed, filled and completed exactly once. At most concurrency
// nodes are stored at a time.
//
// A failure in one file is recorded in its FileResult and does not stop
// the others. The returned error is non-nil only when ctx is cancelled.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) (*Result, error) {
	im.logger.Info("starting import",
		"files", len(paths),
		"concurrency", im.concurrency,
	)

	startTime := time.Now()
	results := make([]FileResult, len(paths))
	records := make([][]Record, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)

	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}

			recs, rowErrs, err := readFile(path)
			results[i].Rows = len(recs) + len(rowErrs)
			results[i].Invalid = len(rowErrs)
			im.logRowErrors(path, rowErrs)
			if err != nil {
				results[i].Err = err
				im.logger.Warn("import failed", "file", path, "error", err)
				return nil
			}
			records[i] = recs
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		groups, groupErrs := groupBySource(records)
		for i, rowErrs := range groupErrs {
			results[i].Invalid += len(rowErrs)
			im.logRowErrors(paths[i], rowErrs)
		}
		err = im.importGroups(ctx, paths, groups, results)
	}

	res := &Result{
		Files:   results,
		Elapsed: time.Since(startTime),
	}
	for _, f := range results {
		res.Total.Add(f.Counts)
		if f.SkippedRows > 0 {
			im.logger.Warn("rows of already completed nodes were not imported",
				"file", f.Path,
				"rows", f.SkippedRows,
			)
		}
	}

	im.logger.Info("import complete",
		"files", len(paths),
		"inserted", res.Total.Inserted,
		"elapsed", res.Elapsed,
	)

	return res, err
}

// importGroups stores every node group with at most concurrency workers.
// Each group is handled by exactly one worker; its counts are credited to
// the files its rows came from.
func (im *Importer) importGroups(ctx context.Context, names []string, groups []nodeGroup, results []FileResult) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)

	for _, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			tally := make(map[int]*Counts)
			err := im.importNode(gctx, names, grp, tally)

			mu.Lock()
			defer mu.Unlock()

			for file, c := range tally {
				results[file].Add(*c)
			}
			if err == nil {
				return nil
			}

			im.logger.Warn("node import failed", "node", grp.node, "error", err)
			for _, file := range grp.files() {
				if results[file].Err == nil {
					results[file].Err = err
				}
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// ImportFile imports a single CSV file.
func (im *Importer) ImportFile(ctx context.Context, path string) FileResult {
	res, err := im.ImportFiles(ctx, []string{path})
	fr := res.Files[0]
	if fr.Err == nil && err != nil {
		fr.Err = err
	}
	return fr
}

// ImportReader imports CSV data from r, one source node after another.
// name is used in log messages.
func (im *Importer) ImportReader(ctx context.Context, name string, r io.Reader) (Counts, error) {
	var counts Counts

	records, rowErrs, err := ReadCSV(r)
	counts.Rows = len(records) + len(rowErrs)
	if err != nil {
		return counts, fmt.Errorf("%s: %w", name, err)
	}

	groups, groupErrs := groupBySource([][]Record{records})
	rowErrs = append(rowErrs, groupErrs[0]...)
	im.logRowErrors(name, rowErrs)
	counts.Invalid = len(rowErrs)

	names := []string{name}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		tally := map[int]*Counts{0: &counts}
		if err := im.importNode(ctx, names, g, tally); err != nil {
			return counts, err
		}
	}

	im.logger.Debug("file imported",
		"file", name,
		"rows", counts.Rows,
		"inserted", counts.Inserted,
		"duplicates", counts.Duplicates,
	)
	return counts, nil
}

// readFile parses the CSV file at path.
func readFile(path string) ([]Record, []RowError, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided input path is intentional
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, rowErrs, err := ReadCSV(f)
	if err != nil {
		return records, rowErrs, fmt.Errorf("%s: %w", path, err)
	}
	return records, rowErrs, nil
}

func (im *Importer) logRowErrors(name string, rowErrs []RowError) {
	for _, re := range rowErrs {
		im.logger.Warn("skipping malformed row", "file", name, "line", re.Line, "error", re.Err)
	}
}

// importNode runs the skip, claim, store and complete sequence for one
// source node. Counts are added to tally under the index of the file each
// row came from; node level counts go to the first file.
func (im *Importer) importNode(ctx context.Context, names []string, g nodeGroup, tally map[int]*Counts) error {
	at := func(file int) *Counts {
		c, ok := tally[file]
		if !ok {
			c = &Counts{}
			tally[file] = c
		}
		return c
	}
	first := g.rows[0].file

	done, err := im.tracker.IsProcessed(ctx, g.node)
	if err != nil {
		return fmt.Errorf("node %q: %w", g.node, err)
	}
	if done && !im.revisit {
		at(first).NodesSkipped++
		for _, row := range g.rows {
			at(row.file).SkippedRows++
		}
		im.logger.Debug("node already processed", "node", g.node, "rows", len(g.rows))
		return nil
	}

	if !done {
		if err := im.tracker.MarkInProgress(ctx, g.node); err != nil {
			return fmt.Errorf("node %q: %w", g.node, err)
		}
	}

	stored := 0
	for _, row := range g.rows {
		counts := at(row.file)
		if row.Triangle.MinWeight() < im.minWeight {
			counts.Filtered++
			continue
		}
		if im.maxPerNode > 0 && stored >= im.maxPerNode {
			counts.Capped++
			continue
		}

		inserted, err := im.store.SaveTriangle(ctx, row.Triangle)
		if errors.Is(err, database.ErrValidation) {
			counts.Invalid++
			im.logger.Warn("skipping invalid triangle", "file", names[row.file], "line", row.Line, "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", names[row.file], row.Line, err)
		}

		stored++
		if inserted {
			counts.Inserted++
		} else {
			counts.Duplicates++
		}
	}

	if done {
		return nil
	}
	if err := im.tracker.MarkProcessed(ctx, g.node); err != nil {
		return fmt.Errorf("node %q: %w", g.node, err)
	}
	at(first).NodesCompleted++
	return nil
}
