package model

import (
	"sort"
)

// TopSourceNodesLimit is how many A-slot nodes Statistics.TopSourceNodes keeps.
const TopSourceNodesLimit = 10

// RelationStats aggregates one relation type over every slot it appears in.
type RelationStats struct {
	// Count is the number of slot appearances, so a triangle whose three
	// relations share a type contributes three.
	Count int64 `json:"count"`

	// AvgWeight is the arithmetic mean of the weights of those appearances.
	AvgWeight float64 `json:"avg_weight"`
}

// SlotWeights holds one value per relation slot.
type SlotWeights struct {
	AToB float64 `json:"a_to_b"`
	CToB float64 `json:"c_to_b"`
	AToC float64 `json:"a_to_c"`
}

// NodeCount pairs a node with the number of triangles it heads.
type NodeCount struct {
	Node  string `json:"node"`
	Count int64  `json:"count"`
}

// Statistics is the set of aggregates derived from the triangle table.
// An empty store yields zero counts and an empty PerRelationType map.
type Statistics struct {
	TotalTriangles     int64                    `json:"total_triangles"`
	TotalNodesInvolved int64                    `json:"total_nodes_involved"`
	PerRelationType    map[string]RelationStats `json:"per_relation_type"`

	// SlotAverageWeights is the mean weight of each slot column.
	SlotAverageWeights SlotWeights `json:"slot_average_weights"`

	// MinWeight and MaxWeight span all three weight columns.
	MinWeight float64 `json:"min_weight"`
	MaxWeight float64 `json:"max_weight"`

	// TopSourceNodes lists the nodes heading the most triangles, most first.
	TopSourceNodes []NodeCount `json:"top_source_nodes"`
}

// NewStatistics returns zeroed statistics with non-nil collections.
func NewStatistics() Statistics {
	return Statistics{
		PerRelationType: make(map[string]RelationStats),
		TopSourceNodes:  []NodeCount{},
	}
}

// IsEmpty reports whether no triangle contributed to the statistics.
func (s Statistics) IsEmpty() bool {
	return s.TotalTriangles == 0
}

// RelationTypes returns the relation types ordered by descending count,
// then by name.
func (s Statistics) RelationTypes() []string {
	types := make([]string, 0, len(s.PerRelationType))
	for t := range s.PerRelationType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		ci, cj := s.PerRelationType[types[i]].Count, s.PerRelationType[types[j]].Count
		if ci != cj {
			return ci > cj
		}
		return types[i] < types[j]
	})
	return types
}
