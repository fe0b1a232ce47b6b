package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/triangledb/internal/model"
)

// ProgressTracker records which graph nodes have been visited so a scan can
// resume after an interruption. It owns writes to processed_nodes.
type ProgressTracker struct {
	db *DB
}

// NewProgressTracker returns a tracker backed by db.
func NewProgressTracker(db *DB) *ProgressTracker {
	return &ProgressTracker{db: db}
}

// normalizeNode trims and NFC-normalizes node and rejects empty values.
func normalizeNode(node string) (string, error) {
	n := model.NormalizeIdentifier(node)
	if n == "" {
		return "", fmt.Errorf("%w: %w", ErrValidation, model.ErrEmptyNode)
	}
	return n, nil
}

// IsProcessed reports whether node has been marked completed.
func (t *ProgressTracker) IsProcessed(ctx context.Context, node string) (bool, error) {
	n, err := normalizeNode(node)
	if err != nil {
		return false, err
	}

	var status string
	err = t.db.read(ctx, "is processed", func(q querier) error {
		return q.QueryRowContext(ctx,
			"SELECT status FROM processed_nodes WHERE node_name = ?", n,
		).Scan(&status)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	parsed, err := model.ParseNodeStatus(status)
	if err != nil {
		return false, fmt.Errorf("node %q: %w: %w", n, ErrIntegrityViolation, err)
	}
	return parsed == model.StatusCompleted, nil
}

// MarkInProgress claims node for processing. A node already in progress only
// gets its timestamp refreshed; a completed node is left untouched, so
// completion never regresses.
func (t *ProgressTracker) MarkInProgress(ctx context.Context, node string) error {
	n, err := normalizeNode(node)
	if err != nil {
		return err
	}

	now := t.db.timestamp()
	return t.db.withTx(ctx, "mark in progress", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE processed_nodes SET processed_at = ?
		WHERE node_name = ? AND status = ?
		`, now, n, model.StatusInProgress.String())
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err != nil || affected > 0 {
			return err
		}

		// Either a new node or a completed one; the conflict clause keeps
		// completed rows as they are.
		_, err = tx.ExecContext(ctx, `
		INSERT INTO processed_nodes (node_name, processed_at, status)
		VALUES (?, ?, ?)
		ON CONFLICT(node_name) DO NOTHING
		`, n, now, model.StatusInProgress.String())
		if err == nil {
			t.db.logger.Debug("node marked in progress", "node", n)
		}
		return err
	})
}

// MarkProcessed marks node completed. Callers must store every triangle
// headed by node before calling it. A node with no triangles may be marked.
func (t *ProgressTracker) MarkProcessed(ctx context.Context, node string) error {
	return t.setStatus(ctx, node, model.StatusCompleted)
}

// setStatus writes status for node with an update-then-insert in a single
// transaction.
func (t *ProgressTracker) setStatus(ctx context.Context, node string, status model.NodeStatus) error {
	n, err := normalizeNode(node)
	if err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("set status %q: %w", status, ErrIntegrityViolation)
	}

	now := t.db.timestamp()
	return t.db.withTx(ctx, "mark "+status.String(), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE processed_nodes SET status = ?, processed_at = ?
		WHERE node_name = ?
		`, status.String(), now, n)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO processed_nodes (node_name, processed_at, status)
			VALUES (?, ?, ?)
			`, n, now, status.String()); err != nil {
				return err
			}
		}
		t.db.logger.Debug("node status updated", "node", n, "status", status)
		return nil
	})
}

// LastProcessedNode returns the most recently completed node. The boolean is
// false when no node has been completed yet.
func (t *ProgressTracker) LastProcessedNode(ctx context.Context) (string, bool, error) {
	var node string
	err := t.db.read(ctx, "last processed node", func(q querier) error {
		var err error
		node, _, err = lastCompleted(ctx, q)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return node, true, nil
}

// Progress returns the aggregate view of the progress table.
func (t *ProgressTracker) Progress(ctx context.Context) (model.Progress, error) {
	var p model.Progress
	err := t.db.read(ctx, "progress", func(q querier) error {
		var err error
		p, err = queryProgress(ctx, q)
		return err
	})
	return p, err
}

// InProgressNodes returns the nodes claimed but never completed, oldest
// claim first. After a crash these are the nodes to retry.
func (t *ProgressTracker) InProgressNodes(ctx context.Context) ([]string, error) {
	nodes := make([]string, 0)
	err := t.db.read(ctx, "in progress nodes", func(q querier) error {
		nodes = nodes[:0]
		rows, err := q.QueryContext(ctx, `
		SELECT node_name FROM processed_nodes
		WHERE status = ?
		ORDER BY processed_at, rowid
		`, model.StatusInProgress.String())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				return err
			}
			nodes = append(nodes, n)
		}
		return rows.Err()
	})
	return nodes, err
}

// Node returns the stored progress record for node, or nil if the node was
// never visited.
func (t *ProgressTracker) Node(ctx context.Context, node string) (*model.NodeProgress, error) {
	n, err := normalizeNode(node)
	if err != nil {
		return nil, err
	}

	var status, ts string
	err = t.db.read(ctx, "node progress", func(q querier) error {
		return q.QueryRowContext(ctx,
			"SELECT status, processed_at FROM processed_nodes WHERE node_name = ?", n,
		).Scan(&status, &ts)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	parsed, err := model.ParseNodeStatus(status)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w: %w", n, ErrIntegrityViolation, err)
	}
	return &model.NodeProgress{Node: n, Status: parsed, UpdatedAt: parseTimestamp(ts)}, nil
}

// lastCompleted returns the newest completed node and its timestamp, or
// sql.ErrNoRows.
func lastCompleted(ctx context.Context, q querier) (string, string, error) {
	var node, ts string
	err := q.QueryRowContext(ctx, `
	SELECT node_name, processed_at FROM processed_nodes
	WHERE status = ?
	ORDER BY processed_at DESC, rowid DESC
	LIMIT 1
	`, model.StatusCompleted.String()).Scan(&node, &ts)
	return node, ts, err
}

// queryProgress computes the Progress aggregate with q.
func queryProgress(ctx context.Context, q querier) (model.Progress, error) {
	var p model.Progress
	err := q.QueryRowContext(ctx, `
	SELECT
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
	FROM processed_nodes
	`, model.StatusCompleted.String(), model.StatusInProgress.String()).Scan(&p.CompletedCount, &p.InProgressCount)
	if err != nil {
		return p, err
	}

	node, ts, err := lastCompleted(ctx, q)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	p.LastNode = node
	p.LastTimestamp = parseTimestamp(ts)
	return p, nil
}
