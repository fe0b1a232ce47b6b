package model

import (
	"fmt"
	"time"
)

// NodeStatus is the processing state of a graph node.
type NodeStatus string

const (
	// StatusInProgress marks a node claimed by the traversal but not finished.
	// After a crash these nodes are retried.
	StatusInProgress NodeStatus = "in_progress"

	// StatusCompleted marks a node whose triangles are all durably stored.
	StatusCompleted NodeStatus = "completed"
)

// String returns the stored representation of the status.
func (s NodeStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s NodeStatus) Valid() bool {
	return s == StatusInProgress || s == StatusCompleted
}

// ParseNodeStatus converts a stored status value into a NodeStatus.
func ParseNodeStatus(s string) (NodeStatus, error) {
	status := NodeStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown node status %q", s)
	}
	return status, nil
}

// NodeProgress is the stored state of one visited node.
type NodeProgress struct {
	Node      string     `json:"node"`
	Status    NodeStatus `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Progress aggregates the node progress table.
type Progress struct {
	// CompletedCount is the number of nodes marked completed.
	CompletedCount int64 `json:"completed_count"`

	// InProgressCount is the number of nodes claimed but not completed.
	InProgressCount int64 `json:"in_progress_count"`

	// LastNode is the most recently completed node, or "" when none is.
	LastNode string `json:"last_node,omitempty"`

	// LastTimestamp is when LastNode was completed. Zero when LastNode is "".
	LastTimestamp time.Time `json:"last_timestamp,omitzero"`
}

// HasResumePoint reports whether at least one node has been completed.
func (p Progress) HasResumePoint() bool {
	return p.LastNode != ""
}

// Total returns the number of nodes ever visited.
func (p Progress) Total() int64 {
	return p.CompletedCount + p.InProgressCount
}
