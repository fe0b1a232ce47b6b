package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nao1215/triangledb/internal/model"
)

// TriangleStore persists deduplicated triangles. It owns writes to the
// triangles table.
type TriangleStore struct {
	db *DB
}

// NewTriangleStore returns a store backed by db.
func NewTriangleStore(db *DB) *TriangleStore {
	return &TriangleStore{db: db}
}

// SaveTriangle stores tri unless an identical triangle already exists.
// It returns inserted == false for a duplicate; that is a normal outcome,
// not an error. Invalid input returns ErrValidation and writes nothing.
func (s *TriangleStore) SaveTriangle(ctx context.Context, tri model.Triangle) (bool, error) {
	tri = tri.Normalize()
	if err := tri.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	inserted := false
	now := s.db.timestamp()
	err := s.db.withTx(ctx, "save triangle", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		INSERT INTO triangles (
			node_a, node_b, node_c,
			relation_a_to_b, relation_c_to_b, relation_a_to_c,
			weight_a_to_b, weight_c_to_b, weight_a_to_c,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_a, node_b, node_c, relation_a_to_b, relation_c_to_b, relation_a_to_c) DO NOTHING
		`,
			tri.A, tri.B, tri.C,
			tri.AToB.Type, tri.CToB.Type, tri.AToC.Type,
			tri.AToB.Weight, tri.CToB.Weight, tri.AToC.Weight,
			now,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	s.db.logger.Debug("triangle saved",
		"a", tri.A, "b", tri.B, "c", tri.C,
		"inserted", inserted,
	)
	return inserted, nil
}

// Save is SaveTriangle with the nine positional values a traversal produces.
func (s *TriangleStore) Save(
	ctx context.Context,
	nodeA, nodeB, nodeC string,
	relAToB, relCToB, relAToC string,
	wAToB, wCToB, wAToC float64,
) (bool, error) {
	return s.SaveTriangle(ctx, model.NewTriangle(nodeA, nodeB, nodeC, relAToB, relCToB, relAToC, wAToB, wCToB, wAToC))
}

// Count returns the number of stored triangles.
func (s *TriangleStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.read(ctx, "count triangles", func(q querier) error {
		return q.QueryRowContext(ctx, "SELECT COUNT(*) FROM triangles").Scan(&n)
	})
	return n, err
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	// Node matches triangles that contain the node in any slot.
	Node string

	// Relation matches triangles that use the relation type in any slot.
	Relation string

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

// List returns stored triangles in insertion order.
func (s *TriangleStore) List(ctx context.Context, f Filter) ([]model.Triangle, error) {
	query := `
	SELECT id, node_a, node_b, node_c,
		relation_a_to_b, relation_c_to_b, relation_a_to_c,
		weight_a_to_b, weight_c_to_b, weight_a_to_c,
		created_at
	FROM triangles
	WHERE 1=1
	`
	args := make([]any, 0, 7)

	if node := model.NormalizeIdentifier(f.Node); node != "" {
		query += " AND (node_a = ? OR node_b = ? OR node_c = ?)"
		args = append(args, node, node, node)
	}
	if rel := model.NormalizeIdentifier(f.Relation); rel != "" {
		query += " AND (relation_a_to_b = ? OR relation_c_to_b = ? OR relation_a_to_c = ?)"
		args = append(args, rel, rel, rel)
	}

	query += " ORDER BY id"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var results []model.Triangle
	err := s.db.read(ctx, "list triangles", func(q querier) error {
		results = results[:0]
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t model.Triangle
			var created string
			if err := rows.Scan(
				&t.ID, &t.A, &t.B, &t.C,
				&t.AToB.Type, &t.CToB.Type, &t.AToC.Type,
				&t.AToB.Weight, &t.CToB.Weight, &t.AToC.Weight,
				&created,
			); err != nil {
				return err
			}
			t.CreatedAt = parseTimestamp(created)
			results = append(results, t)
		}
		return rows.Err()
	})
	return results, err
}

// slotColumns maps each slot to its relation and weight columns.
var slotColumns = map[model.Slot][2]string{
	model.SlotAToB: {"relation_a_to_b", "weight_a_to_b"},
	model.SlotCToB: {"relation_c_to_b", "weight_c_to_b"},
	model.SlotAToC: {"relation_a_to_c", "weight_a_to_c"},
}

// unionSlots builds a subquery yielding one (relation, weight) row per slot
// appearance.
func unionSlots() string {
	parts := make([]string, 0, len(model.Slots))
	for _, slot := range model.Slots {
		cols := slotColumns[slot]
		parts = append(parts, fmt.Sprintf("SELECT %s AS relation, %s AS weight FROM triangles", cols[0], cols[1]))
	}
	return strings.Join(parts, " UNION ALL ")
}
