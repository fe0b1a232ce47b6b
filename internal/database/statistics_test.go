package database

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nao1215/triangledb/internal/model"
)

// TestStatistics tests aggregates computed from the triangle table.
func TestStatistics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty store returns zeroed statistics", func(t *testing.T) {
		t.Parallel()

		stats, err := NewStatsEngine(setupTestDB(t)).Statistics(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TotalTriangles != 0 || stats.TotalNodesInvolved != 0 {
			t.Errorf("expected zero counts, got %+v", stats)
		}
		if stats.PerRelationType == nil || len(stats.PerRelationType) != 0 {
			t.Errorf("expected empty non-nil relation map, got %v", stats.PerRelationType)
		}
		if !stats.IsEmpty() {
			t.Error("expected IsEmpty to be true")
		}
	})

	t.Run("relation average spans every slot", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		store := NewTriangleStore(db)

		// friend appears once with weight 2.0 (A→B) and once with 4.0 (A→C).
		if _, err := store.Save(ctx, "A", "B", "C", "friend", "colleague", "rival", 2.0, 5.0, 1.0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Save(ctx, "D", "E", "F", "rival", "colleague", "friend", 3.0, 7.0, 4.0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stats, err := NewStatsEngine(db).Statistics(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		friend, ok := stats.PerRelationType["friend"]
		if !ok {
			t.Fatal("expected friend relation stats")
		}
		if friend.Count != 2 {
			t.Errorf("expected friend count 2, got %d", friend.Count)
		}
		if friend.AvgWeight != 3.0 {
			t.Errorf("expected friend avg_weight 3.0, got %v", friend.AvgWeight)
		}

		colleague := stats.PerRelationType["colleague"]
		if colleague.Count != 2 || colleague.AvgWeight != 6.0 {
			t.Errorf("expected colleague {2 6}, got %+v", colleague)
		}

		if stats.TotalTriangles != 2 {
			t.Errorf("expected 2 triangles, got %d", stats.TotalTriangles)
		}
		if stats.TotalNodesInvolved != 6 {
			t.Errorf("expected 6 distinct nodes, got %d", stats.TotalNodesInvolved)
		}
		if stats.MinWeight != 1.0 || stats.MaxWeight != 7.0 {
			t.Errorf("expected weight range [1, 7], got [%v, %v]", stats.MinWeight, stats.MaxWeight)
		}
		if stats.SlotAverageWeights.AToB != 2.5 {
			t.Errorf("expected a_to_b average 2.5, got %v", stats.SlotAverageWeights.AToB)
		}
	})

	t.Run("shared nodes are counted once", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		store := NewTriangleStore(db)

		if _, err := store.Save(ctx, "A", "B", "C", "r", "r", "r", 1, 1, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Save(ctx, "A", "C", "D", "r", "r", "r", 1, 1, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Save(ctx, "B", "C", "D", "r", "r", "r", 1, 1, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stats, err := NewStatsEngine(db).Statistics(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.TotalNodesInvolved != 4 {
			t.Errorf("expected 4 distinct nodes, got %d", stats.TotalNodesInvolved)
		}
		if got := stats.PerRelationType["r"].Count; got != 9 {
			t.Errorf("expected 9 appearances of r, got %d", got)
		}

		if len(stats.TopSourceNodes) != 2 {
			t.Fatalf("expected 2 source nodes, got %v", stats.TopSourceNodes)
		}
		if stats.TopSourceNodes[0] != (model.NodeCount{Node: "A", Count: 2}) {
			t.Errorf("expected A to head 2 triangles, got %+v", stats.TopSourceNodes[0])
		}
	})
}

// TestSaveDetailedStatistics tests snapshot creation and history.
func TestSaveDetailedStatistics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("snapshot merges statistics, progress and metadata", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		store := NewTriangleStore(db)
		tracker := NewProgressTracker(db)
		engine := NewStatsEngine(db)

		if err := tracker.MarkInProgress(ctx, "A"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Save(ctx, "A", "B", "C", "friend", "friend", "rival", 2, 4, 6); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := tracker.MarkProcessed(ctx, "A"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := tracker.MarkInProgress(ctx, "B"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		meta := model.Metadata{
			"min_weight_threshold":   0.5,
			"max_triangles_per_node": 10,
			"source":                 "unit-test",
			"limits":                 map[string]any{"depth": 2},
		}
		snap, err := engine.SaveDetailedStatistics(ctx, 1500*time.Millisecond, meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if snap.ID == 0 || snap.RunID == "" {
			t.Errorf("expected id and run id, got %+v", snap)
		}
		if snap.TotalTriangles != 1 || snap.DistinctNodes != 3 {
			t.Errorf("unexpected totals: %+v", snap)
		}
		if snap.Payload.SchemaVersion != model.SnapshotSchemaVersion {
			t.Errorf("expected schema version %d, got %d", model.SnapshotSchemaVersion, snap.Payload.SchemaVersion)
		}
		if snap.Payload.Progress.CompletedCount != 1 || snap.Payload.Progress.InProgressCount != 1 {
			t.Errorf("unexpected progress: %+v", snap.Payload.Progress)
		}

		latest, err := engine.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest == nil {
			t.Fatal("expected a stored snapshot")
		}
		if latest.RunID != snap.RunID {
			t.Errorf("expected run id %s, got %s", snap.RunID, latest.RunID)
		}
		if latest.Duration != 1500*time.Millisecond {
			t.Errorf("expected duration 1.5s, got %v", latest.Duration)
		}
		if got := latest.Payload.Statistics.PerRelationType["friend"]; got.Count != 2 || got.AvgWeight != 3 {
			t.Errorf("expected friend {2 3} in payload, got %+v", got)
		}
		if got := latest.Payload.Metadata["min_weight_threshold"]; got != 0.5 {
			t.Errorf("expected metadata to round-trip, got %v", got)
		}
		if latest.Payload.Progress.LastNode != "A" {
			t.Errorf("expected last node A, got %q", latest.Payload.Progress.LastNode)
		}
	})

	t.Run("snapshots are append-only", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		engine := NewStatsEngine(db)

		first, err := engine.SaveDetailedStatistics(ctx, time.Second, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewTriangleStore(db).Save(ctx, "A", "B", "C", "r", "r", "r", 1, 1, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := engine.SaveDetailedStatistics(ctx, 2*time.Second, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		history, err := engine.Snapshots(ctx, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 snapshots, got %d", len(history))
		}
		if history[0].ID != second.ID || history[1].ID != first.ID {
			t.Errorf("expected newest first, got ids %d, %d", history[0].ID, history[1].ID)
		}
		if history[1].TotalTriangles != 0 {
			t.Errorf("expected first snapshot to keep its totals, got %d", history[1].TotalTriangles)
		}
		if history[0].TotalTriangles != 1 {
			t.Errorf("expected second snapshot to see 1 triangle, got %d", history[0].TotalTriangles)
		}
	})

	t.Run("latest snapshot on empty history is nil", func(t *testing.T) {
		t.Parallel()

		latest, err := NewStatsEngine(setupTestDB(t)).LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest != nil {
			t.Errorf("expected nil, got %+v", latest)
		}
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		t.Parallel()

		engine := NewStatsEngine(setupTestDB(t))

		if _, err := engine.SaveDetailedStatistics(ctx, -time.Second, nil); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation for negative duration, got %v", err)
		}
		bad := model.Metadata{"ratio": math.NaN()}
		if _, err := engine.SaveDetailedStatistics(ctx, time.Second, bad); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation for NaN metadata, got %v", err)
		}
		weird := model.Metadata{"ch": make(chan int)}
		if _, err := engine.SaveDetailedStatistics(ctx, time.Second, weird); !errors.Is(err, model.ErrInvalidMetadata) {
			t.Errorf("expected ErrInvalidMetadata, got %v", err)
		}

		history, err := engine.Snapshots(ctx, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected no snapshots, got %d", len(history))
		}
	})
}
