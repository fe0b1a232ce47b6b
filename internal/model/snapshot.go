package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// SnapshotSchemaVersion is the version written into every snapshot payload.
// Bump it when the payload layout changes; readers switch on the value.
const SnapshotSchemaVersion = 1

// ErrInvalidMetadata is returned when snapshot metadata holds a value that
// cannot be stored as a structured payload.
var ErrInvalidMetadata = errors.New("invalid snapshot metadata")

// Snapshot is one persisted statistics record. Snapshots are append-only.
type Snapshot struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`

	// Duration is the execution time the caller reported for the run.
	Duration time.Duration `json:"duration"`

	TotalTriangles int64 `json:"total_triangles"`
	DistinctNodes  int64 `json:"distinct_nodes"`

	Payload SnapshotPayload `json:"payload"`
}

// SnapshotPayload is the structured blob stored with each snapshot.
type SnapshotPayload struct {
	SchemaVersion int            `json:"schema_version"`
	Statistics    Statistics     `json:"statistics"`
	Progress      Progress       `json:"progress"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Metadata is caller-supplied context for a snapshot, such as the weight
// threshold the traversal used. Values are strings, booleans, numbers,
// slices of those, or nested Metadata maps.
type Metadata map[string]any

// Validate checks that every value is a supported scalar or nested value.
func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidMetadata)
		}
		if err := validateMetadataValue(v); err != nil {
			return fmt.Errorf("%w: key %q: %w", ErrInvalidMetadata, k, err)
		}
	}
	return nil
}

func validateMetadataValue(v any) error {
	switch val := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return nil
	case float32:
		return checkFinite(float64(val))
	case float64:
		return checkFinite(val)
	case time.Duration:
		return nil
	case []any:
		for _, item := range val {
			if err := validateMetadataValue(item); err != nil {
				return err
			}
		}
		return nil
	case []float64:
		for _, f := range val {
			if err := checkFinite(f); err != nil {
				return err
			}
		}
		return nil
	case []string, []int, []int64:
		return nil
	case map[string]any:
		return Metadata(val).Validate()
	case Metadata:
		return val.Validate()
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}

func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v", f)
	}
	return nil
}
