package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Triangle validation errors.
// Callers match them with errors.Is; the storage layer wraps them in its own
// validation error.
var (
	// ErrEmptyNode is returned when one of the three node identifiers is empty.
	ErrEmptyNode = errors.New("node identifier must not be empty")

	// ErrDuplicateNode is returned when two node identifiers are equal.
	ErrDuplicateNode = errors.New("node identifiers must be mutually distinct")

	// ErrEmptyRelation is returned when a relation label is empty.
	ErrEmptyRelation = errors.New("relation label must not be empty")

	// ErrInvalidWeight is returned when a weight is NaN or infinite.
	ErrInvalidWeight = errors.New("weight must be a finite number")
)

// Slot identifies one of the three relations of a triangle.
type Slot string

const (
	// SlotAToB is the relation from node A to node B.
	SlotAToB Slot = "a_to_b"
	// SlotCToB is the relation from node C to node B.
	SlotCToB Slot = "c_to_b"
	// SlotAToC is the relation from node A to node C.
	SlotAToC Slot = "a_to_c"
)

// Slots lists the relation slots in storage column order.
var Slots = []Slot{SlotAToB, SlotCToB, SlotAToC}

// Relation is one typed, weighted edge of a triangle.
type Relation struct {
	// Type is the relation-type label (for example "r_isa" or "friend").
	Type string `json:"type"`

	// Weight is the numeric weight the graph source attached to the edge.
	Weight float64 `json:"weight"`
}

// Triangle is three graph nodes connected by the relations A→B, C→B and A→C.
//
// A triangle is identified by (A, B, C, AToB.Type, CToB.Type, AToC.Type).
// Two triangles over the same nodes but with different relation labels are
// distinct records.
type Triangle struct {
	// ID is the synthetic identifier assigned by the store. Zero until saved.
	ID int64 `json:"id,omitempty"`

	// A, B and C are the node identifiers. A is the primary subject: the node
	// the traversal was expanding when it found the triangle.
	A string `json:"a"`
	B string `json:"b"`
	C string `json:"c"`

	// AToB, CToB and AToC are the three relations.
	AToB Relation `json:"a_to_b"`
	CToB Relation `json:"c_to_b"`
	AToC Relation `json:"a_to_c"`

	// CreatedAt is when the store first persisted the triangle.
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NewTriangle builds a Triangle from the nine positional values a traversal
// driver produces.
func NewTriangle(a, b, c, relAToB, relCToB, relAToC string, wAToB, wCToB, wAToC float64) Triangle {
	return Triangle{
		A:    a,
		B:    b,
		C:    c,
		AToB: Relation{Type: relAToB, Weight: wAToB},
		CToB: Relation{Type: relCToB, Weight: wCToB},
		AToC: Relation{Type: relAToC, Weight: wAToC},
	}
}

// Relation returns the relation stored in the given slot.
func (t Triangle) Relation(slot Slot) Relation {
	switch slot {
	case SlotAToB:
		return t.AToB
	case SlotCToB:
		return t.CToB
	case SlotAToC:
		return t.AToC
	default:
		return Relation{}
	}
}

// Nodes returns the three node identifiers in A, B, C order.
func (t Triangle) Nodes() [3]string {
	return [3]string{t.A, t.B, t.C}
}

// Normalize returns a copy with identifiers and labels trimmed and converted
// to Unicode NFC, so "é" typed as one or two code points maps to one key.
func (t Triangle) Normalize() Triangle {
	t.A = NormalizeIdentifier(t.A)
	t.B = NormalizeIdentifier(t.B)
	t.C = NormalizeIdentifier(t.C)
	t.AToB.Type = NormalizeIdentifier(t.AToB.Type)
	t.CToB.Type = NormalizeIdentifier(t.CToB.Type)
	t.AToC.Type = NormalizeIdentifier(t.AToC.Type)
	return t
}

// Validate checks that the nodes are non-empty and mutually distinct, that
// every relation has a label and that every weight is finite.
// It does not normalize; call Normalize first when input comes from outside.
func (t Triangle) Validate() error {
	for _, n := range []struct {
		name  string
		value string
	}{{"a", t.A}, {"b", t.B}, {"c", t.C}} {
		if n.value == "" {
			return fmt.Errorf("node %s: %w", n.name, ErrEmptyNode)
		}
	}

	if t.A == t.B || t.B == t.C || t.A == t.C {
		return fmt.Errorf("nodes (%q, %q, %q): %w", t.A, t.B, t.C, ErrDuplicateNode)
	}

	for _, slot := range Slots {
		rel := t.Relation(slot)
		if rel.Type == "" {
			return fmt.Errorf("relation %s: %w", slot, ErrEmptyRelation)
		}
		if math.IsNaN(rel.Weight) || math.IsInf(rel.Weight, 0) {
			return fmt.Errorf("relation %s weight %v: %w", slot, rel.Weight, ErrInvalidWeight)
		}
	}

	return nil
}

// MinWeight returns the smallest of the three relation weights.
func (t Triangle) MinWeight() float64 {
	return math.Min(t.AToB.Weight, math.Min(t.CToB.Weight, t.AToC.Weight))
}

// NormalizeIdentifier trims surrounding whitespace and converts s to NFC.
func NormalizeIdentifier(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
