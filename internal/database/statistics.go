package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/triangledb/internal/model"
)

// StatsEngine computes aggregates over the stored triangles and appends
// per-run snapshots. It reads triangles and processed_nodes and owns writes
// to the statistics table.
type StatsEngine struct {
	db *DB
}

// NewStatsEngine returns a statistics engine backed by db.
func NewStatsEngine(db *DB) *StatsEngine {
	return &StatsEngine{db: db}
}

// Statistics computes the aggregates from the triangle table. Nothing is
// cached; every call queries the current state.
func (e *StatsEngine) Statistics(ctx context.Context) (model.Statistics, error) {
	var stats model.Statistics
	err := e.db.read(ctx, "statistics", func(q querier) error {
		var err error
		stats, err = queryStatistics(ctx, q)
		return err
	})
	return stats, err
}

// SaveDetailedStatistics computes the statistics and the progress counts,
// merges them with runDuration and metadata and appends one snapshot. It
// never modifies earlier snapshots.
func (e *StatsEngine) SaveDetailedStatistics(ctx context.Context, runDuration time.Duration, metadata model.Metadata) (*model.Snapshot, error) {
	if runDuration < 0 {
		return nil, fmt.Errorf("%w: negative run duration %s", ErrValidation, runDuration)
	}
	if err := metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	var snap *model.Snapshot
	err := e.db.withTx(ctx, "save statistics snapshot", func(tx *sql.Tx) error {
		stats, err := queryStatistics(ctx, tx)
		if err != nil {
			return err
		}
		progress, err := queryProgress(ctx, tx)
		if err != nil {
			return err
		}

		s := &model.Snapshot{
			RunID:          uuid.NewString(),
			CreatedAt:      e.db.now().UTC(),
			Duration:       runDuration,
			TotalTriangles: stats.TotalTriangles,
			DistinctNodes:  stats.TotalNodesInvolved,
			Payload: model.SnapshotPayload{
				SchemaVersion: model.SnapshotSchemaVersion,
				Statistics:    stats,
				Progress:      progress,
				Metadata:      metadata,
			},
		}

		payload, err := json.Marshal(s.Payload)
		if err != nil {
			return fmt.Errorf("%w: failed to serialize payload: %w", ErrValidation, err)
		}

		res, err := tx.ExecContext(ctx, `
		INSERT INTO statistics (
			run_id, created_at, execution_time,
			total_triangles, distinct_nodes, completed_nodes, in_progress_nodes,
			schema_version, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			s.RunID, formatTimestamp(s.CreatedAt), runDuration.Seconds(),
			s.TotalTriangles, s.DistinctNodes, progress.CompletedCount, progress.InProgressCount,
			s.Payload.SchemaVersion, string(payload),
		)
		if err != nil {
			return err
		}
		if s.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		snap = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.db.logger.Debug("statistics snapshot saved",
		"id", snap.ID,
		"runID", snap.RunID,
		"triangles", snap.TotalTriangles,
	)
	return snap, nil
}

// Snapshots returns up to limit snapshots, newest first. A limit of zero
// returns the whole history.
func (e *StatsEngine) Snapshots(ctx context.Context, limit int) ([]model.Snapshot, error) {
	query := `
	SELECT id, run_id, created_at, execution_time, total_triangles, distinct_nodes, payload
	FROM statistics
	ORDER BY id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var snaps []model.Snapshot
	err := e.db.read(ctx, "list snapshots", func(q querier) error {
		snaps = snaps[:0]
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanSnapshot(rows)
			if err != nil {
				return err
			}
			snaps = append(snaps, *s)
		}
		return rows.Err()
	})
	return snaps, err
}

// LatestSnapshot returns the newest snapshot, or nil when none exists.
func (e *StatsEngine) LatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	snaps, err := e.Snapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (*model.Snapshot, error) {
	var s model.Snapshot
	var created, payload string
	var seconds float64

	if err := r.Scan(&s.ID, &s.RunID, &created, &seconds, &s.TotalTriangles, &s.DistinctNodes, &payload); err != nil {
		return nil, err
	}

	s.CreatedAt = parseTimestamp(created)
	s.Duration = time.Duration(seconds * float64(time.Second))

	if err := json.Unmarshal([]byte(payload), &s.Payload); err != nil {
		return nil, fmt.Errorf("snapshot %d: %w: malformed payload: %w", s.ID, ErrIntegrityViolation, err)
	}
	if s.Payload.Statistics.PerRelationType == nil {
		s.Payload.Statistics.PerRelationType = make(map[string]model.RelationStats)
	}
	return &s, nil
}

// queryStatistics computes every aggregate with q. It is shared by the
// standalone read and the snapshot transaction.
func queryStatistics(ctx context.Context, q querier) (model.Statistics, error) {
	stats := model.NewStatistics()

	// Totals and per-slot averages. AVG/MIN/MAX are NULL on an empty table.
	var avgAB, avgCB, avgAC sql.NullFloat64
	err := q.QueryRowContext(ctx, `
	SELECT COUNT(*), AVG(weight_a_to_b), AVG(weight_c_to_b), AVG(weight_a_to_c)
	FROM triangles
	`).Scan(&stats.TotalTriangles, &avgAB, &avgCB, &avgAC)
	if err != nil {
		return stats, err
	}
	if stats.TotalTriangles == 0 {
		return stats, nil
	}
	stats.SlotAverageWeights = model.SlotWeights{
		AToB: avgAB.Float64,
		CToB: avgCB.Float64,
		AToC: avgAC.Float64,
	}

	err = q.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM (
		SELECT node_a AS node FROM triangles
		UNION SELECT node_b FROM triangles
		UNION SELECT node_c FROM triangles
	)
	`).Scan(&stats.TotalNodesInvolved)
	if err != nil {
		return stats, err
	}

	var minW, maxW sql.NullFloat64
	err = q.QueryRowContext(ctx,
		"SELECT MIN(weight), MAX(weight) FROM ("+unionSlots()+")",
	).Scan(&minW, &maxW)
	if err != nil {
		return stats, err
	}
	stats.MinWeight = minW.Float64
	stats.MaxWeight = maxW.Float64

	if err := queryRelationStats(ctx, q, stats.PerRelationType); err != nil {
		return stats, err
	}

	top, err := queryTopSourceNodes(ctx, q, model.TopSourceNodesLimit)
	if err != nil {
		return stats, err
	}
	stats.TopSourceNodes = top

	return stats, nil
}

// queryRelationStats fills dst with count and mean weight per relation type,
// counting every slot a type appears in.
func queryRelationStats(ctx context.Context, q querier, dst map[string]model.RelationStats) error {
	rows, err := q.QueryContext(ctx, `
	SELECT relation, COUNT(*), AVG(weight)
	FROM (`+unionSlots()+`)
	GROUP BY relation
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rel string
		var rs model.RelationStats
		if err := rows.Scan(&rel, &rs.Count, &rs.AvgWeight); err != nil {
			return err
		}
		dst[rel] = rs
	}
	return rows.Err()
}

// queryTopSourceNodes returns the nodes heading the most triangles.
func queryTopSourceNodes(ctx context.Context, q querier, limit int) ([]model.NodeCount, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT node_a, COUNT(*) AS n
	FROM triangles
	GROUP BY node_a
	ORDER BY n DESC, node_a
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	top := make([]model.NodeCount, 0, limit)
	for rows.Next() {
		var nc model.NodeCount
		if err := rows.Scan(&nc.Node, &nc.Count); err != nil {
			return nil, err
		}
		top = append(top, nc)
	}
	return top, rows.Err()
}
