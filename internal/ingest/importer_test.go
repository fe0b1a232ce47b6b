package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/triangledb/internal/database"
	"github.com/nao1215/triangledb/internal/model"
)

const header = "A,B,C,A_to_B,C_to_B,A_to_C,A_to_B_weight,C_to_B_weight,A_to_C_weight\n"

// fixture holds the stores used by an importer under test.
type fixture struct {
	db      *database.DB
	store   *database.TriangleStore
	tracker *database.ProgressTracker
}

func setupFixture(t *testing.T) fixture {
	t.Helper()

	opts := database.DefaultOptions()
	opts.Logger = discardLogger()
	db, err := database.Open(filepath.Join(t.TempDir(), "ingest.db"), opts)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return fixture{
		db:      db,
		store:   database.NewTriangleStore(db),
		tracker: database.NewProgressTracker(db),
	}
}

func (f fixture) importer(opts ...Option) *Importer {
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return New(f.store, f.tracker, opts...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(header+body), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// TestNew tests the Importer constructor.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates importer with defaults", func(t *testing.T) {
		t.Parallel()

		im := New(nil, nil)
		if im.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, im.concurrency)
		}
		if im.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		im := New(nil, nil, WithConcurrency(0), WithMaxPerNode(-3))
		if im.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, im.concurrency)
		}
		if im.maxPerNode != 0 {
			t.Errorf("expected no cap, got %d", im.maxPerNode)
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		im := New(nil, nil, WithConcurrency(2), WithMinWeight(5), WithMaxPerNode(10), WithRevisit(true))
		if im.concurrency != 2 || im.minWeight != 5 || im.maxPerNode != 10 || !im.revisit {
			t.Errorf("unexpected importer settings: %+v", im)
		}
	})
}

// TestImportReader tests single-file ingestion semantics.
func TestImportReader(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stores triangles and completes source nodes", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		body := "chat,animal,felin,r_isa,r_isa,r_isa,100,50,80\n" +
			"chat,souris,griffe,r_agent,r_patient,r_has_part,10,20,30\n" +
			"chien,animal,canin,r_isa,r_isa,r_isa,90,40,70\n"

		counts, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader(header+body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Counts{Rows: 3, Inserted: 3, NodesCompleted: 2}
		if counts != want {
			t.Errorf("expected %+v, got %+v", want, counts)
		}

		for _, node := range []string{"chat", "chien"} {
			done, err := f.tracker.IsProcessed(ctx, node)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !done {
				t.Errorf("expected %s to be completed", node)
			}
		}
		if done, _ := f.tracker.IsProcessed(ctx, "animal"); done {
			t.Error("only source nodes are marked")
		}
	})

	t.Run("re-import skips completed nodes", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		data := header + "a,b,c,x,y,z,1,2,3\n"

		if _, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader(data)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if counts.NodesSkipped != 1 || counts.SkippedRows != 1 || counts.Inserted != 0 {
			t.Errorf("expected the node to be skipped, got %+v", counts)
		}

		n, err := f.store.Count(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 triangle, got %d", n)
		}
	})

	t.Run("resumes a node left in progress", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		// Simulate a crash after the first triangle of node a was saved.
		if err := f.tracker.MarkInProgress(ctx, "a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := f.store.Save(ctx, "a", "b", "c", "x", "y", "z", 1, 2, 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data := header + "a,b,c,x,y,z,1,2,3\n" + "a,d,e,x,y,z,1,2,3\n"
		counts, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if counts.Duplicates != 1 || counts.Inserted != 1 || counts.NodesCompleted != 1 {
			t.Errorf("unexpected counts %+v", counts)
		}

		remaining, err := f.tracker.InProgressNodes(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(remaining) != 0 {
			t.Errorf("expected no in-progress nodes, got %v", remaining)
		}
	})

	t.Run("weight threshold and per-node cap", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		data := header +
			"a,b,c,x,y,z,10,10,10\n" +
			"a,b,d,x,y,z,10,1,10\n" +
			"a,b,e,x,y,z,20,20,20\n" +
			"a,b,f,x,y,z,30,30,30\n"

		counts, err := f.importer(WithMinWeight(5), WithMaxPerNode(2)).
			ImportReader(ctx, "t.csv", strings.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Counts{Rows: 4, Inserted: 2, Filtered: 1, Capped: 1, NodesCompleted: 1}
		if counts != want {
			t.Errorf("expected %+v, got %+v", want, counts)
		}
		if got := counts.Rejected(); got != 2 {
			t.Errorf("expected 2 rejected rows, got %d", got)
		}
	})

	t.Run("malformed rows are counted and skipped", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		data := header +
			"a,b,c,x,y,z,1,2,3\n" +
			"a,a,b,x,y,z,1,2,3\n" +
			"a,b,c,x,y,z,one,2,3\n" +
			"a,b\n" +
			",b,c,x,y,z,1,2,3\n" +
			"a,b,d,x,y,z,NaN,2,3\n"

		counts, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Counts{Rows: 6, Inserted: 1, Invalid: 5, NodesCompleted: 1}
		if counts != want {
			t.Errorf("expected %+v, got %+v", want, counts)
		}
	})

	t.Run("columns are located by name", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		data := "a_to_c_weight,C,B,A,A_to_C,C_to_B,A_to_B,C_to_B_weight,A_to_B_weight\n" +
			"3,c,b,a,rel_ac,rel_cb,rel_ab,2,1\n"

		if _, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader(data)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := f.store.List(ctx, database.Filter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 triangle, got %d", len(got))
		}
		tri := got[0]
		if tri.A != "a" || tri.AToB.Type != "rel_ab" || tri.AToB.Weight != 1 || tri.AToC.Weight != 3 {
			t.Errorf("columns were mapped incorrectly: %+v", tri)
		}
	})

	t.Run("missing column is a file error", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		_, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader("A,B,C\na,b,c\n"))
		if !errors.Is(err, ErrMissingColumn) {
			t.Errorf("expected ErrMissingColumn, got %v", err)
		}
	})

	t.Run("empty input is a file error", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		_, err := f.importer().ImportReader(ctx, "t.csv", strings.NewReader(""))
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("expected ErrEmptyFile, got %v", err)
		}
	})

	t.Run("cancelled context stops before writing", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.importer().ImportReader(cctx, "t.csv", strings.NewReader(header+"a,b,c,x,y,z,1,2,3\n"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestImportFiles tests concurrent multi-file ingestion.
func TestImportFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("imports all files and aggregates counts", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		dir := t.TempDir()
		paths := []string{
			writeCSV(t, dir, "1.csv", "a,b,c,x,y,z,1,1,1\n"),
			writeCSV(t, dir, "2.csv", "d,e,f,x,y,z,1,1,1\ng,h,i,x,y,z,1,1,1\n"),
			writeCSV(t, dir, "3.csv", "j,k,l,x,y,z,1,1,1\n"),
		}

		res, err := f.importer(WithConcurrency(2)).ImportFiles(ctx, paths)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Files) != 3 {
			t.Fatalf("expected 3 file results, got %d", len(res.Files))
		}
		if res.Files[1].Path != paths[1] || res.Files[1].Inserted != 2 {
			t.Errorf("expected results in input order, got %+v", res.Files[1])
		}
		if res.Total.Inserted != 4 || res.Total.NodesCompleted != 4 {
			t.Errorf("unexpected totals %+v", res.Total)
		}
		if len(res.Failed()) != 0 {
			t.Errorf("expected no failures, got %v", res.Failed())
		}
	})

	t.Run("a missing file does not stop the others", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		dir := t.TempDir()
		good := writeCSV(t, dir, "good.csv", "a,b,c,x,y,z,1,1,1\n")
		missing := filepath.Join(dir, "missing.csv")

		res, err := f.importer().ImportFiles(ctx, []string{missing, good})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		failed := res.Failed()
		if len(failed) != 1 || failed[0].Path != missing {
			t.Fatalf("expected the missing file to fail, got %+v", failed)
		}
		if !errors.Is(failed[0].Err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", failed[0].Err)
		}
		if res.Total.Inserted != 1 {
			t.Errorf("expected the good file to be imported, got %+v", res.Total)
		}
	})

	t.Run("the same node in two files is stored once", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		dir := t.TempDir()
		paths := []string{
			writeCSV(t, dir, "1.csv", "a,b,c,x,y,z,1,1,1\n"),
			writeCSV(t, dir, "2.csv", "a,b,c,x,y,z,1,1,1\n"),
		}

		if _, err := f.importer(WithConcurrency(2)).ImportFiles(ctx, paths); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n, err := f.store.Count(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 triangle, got %d", n)
		}
	})

	t.Run("a source node shared by two files keeps every triangle", func(t *testing.T) {
		t.Parallel()

		for _, concurrency := range []int{1, 4} {
			f := setupFixture(t)
			dir := t.TempDir()
			paths := []string{
				writeCSV(t, dir, "run1.csv", "x,b,c,r,r,r,1,1,1\n"),
				writeCSV(t, dir, "run2.csv", "x,d,e,r,r,r,1,1,1\ny,d,e,r,r,r,1,1,1\n"),
			}

			res, err := f.importer(WithConcurrency(concurrency)).ImportFiles(ctx, paths)
			if err != nil {
				t.Fatalf("concurrency %d: unexpected error: %v", concurrency, err)
			}
			if res.Files[0].Inserted != 1 || res.Files[1].Inserted != 2 {
				t.Errorf("concurrency %d: expected 1 and 2 inserted, got %+v", concurrency, res.Files)
			}
			want := Counts{Rows: 3, Inserted: 3, NodesCompleted: 2}
			if res.Total != want {
				t.Errorf("concurrency %d: expected %+v, got %+v", concurrency, want, res.Total)
			}

			got, err := f.store.List(ctx, database.Filter{Node: "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 2 {
				t.Errorf("concurrency %d: expected both x triangles stored, got %d", concurrency, len(got))
			}
			if done, _ := f.tracker.IsProcessed(ctx, "x"); !done {
				t.Errorf("concurrency %d: expected x to be completed", concurrency)
			}
		}
	})

	t.Run("rows of a node completed by an earlier import are reported", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		dir := t.TempDir()
		first := writeCSV(t, dir, "run1.csv", "x,b,c,r,r,r,1,1,1\n")
		second := writeCSV(t, dir, "run2.csv", "x,d,e,r,r,r,1,1,1\n")

		if _, err := f.importer().ImportFiles(ctx, []string{first}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		res, err := f.importer().ImportFiles(ctx, []string{second})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Counts{Rows: 1, NodesSkipped: 1, SkippedRows: 1}
		if res.Total != want {
			t.Errorf("expected %+v, got %+v", want, res.Total)
		}

		res, err = f.importer(WithRevisit(true)).ImportFiles(ctx, []string{second})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want = Counts{Rows: 1, Inserted: 1}
		if res.Total != want {
			t.Errorf("expected %+v with revisit, got %+v", want, res.Total)
		}

		n, err := f.store.Count(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 triangles, got %d", n)
		}
		node, err := f.tracker.Node(ctx, "x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if node == nil || node.Status != model.StatusCompleted {
			t.Errorf("expected x to stay completed, got %+v", node)
		}
	})

	t.Run("ImportFile reports a single file", func(t *testing.T) {
		t.Parallel()

		f := setupFixture(t)
		path := writeCSV(t, t.TempDir(), "one.csv", "a,b,c,x,y,z,1,1,1\na,d,e,x,y,z,1,1,1\n")

		fr := f.importer().ImportFile(ctx, path)
		if fr.Err != nil {
			t.Fatalf("unexpected error: %v", fr.Err)
		}
		if fr.Path != path || fr.Inserted != 2 || fr.NodesCompleted != 1 {
			t.Errorf("unexpected result %+v", fr)
		}
	})
}
