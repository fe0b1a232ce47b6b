package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/triangledb/internal/model"
)

// Column names of the triangle CSV format, in canonical order.
const (
	ColumnA          = "A"
	ColumnB          = "B"
	ColumnC          = "C"
	ColumnAToB       = "A_to_B"
	ColumnCToB       = "C_to_B"
	ColumnAToC       = "A_to_C"
	ColumnAToBWeight = "A_to_B_weight"
	ColumnCToBWeight = "C_to_B_weight"
	ColumnAToCWeight = "A_to_C_weight"
)

// Header is the canonical header row written by WriteCSV.
var Header = []string{
	ColumnA, ColumnB, ColumnC,
	ColumnAToB, ColumnCToB, ColumnAToC,
	ColumnAToBWeight, ColumnCToBWeight, ColumnAToCWeight,
}

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrEmptyFile is returned for input without a header row.
	ErrEmptyFile = errors.New("empty file")
)

// Record is one parsed CSV row.
type Record struct {
	// Line is the 1-based line number in the input.
	Line     int
	Triangle model.Triangle
}

// RowError describes a row that could not be turned into a triangle.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// columnIndex maps the canonical column names to positions in the input.
type columnIndex map[string]int

func newColumnIndex(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		for _, want := range Header {
			if strings.EqualFold(name, want) {
				idx[want] = i
			}
		}
	}

	missing := make([]string, 0)
	for _, want := range Header {
		if _, ok := idx[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func (idx columnIndex) field(row []string, name string) (string, bool) {
	i := idx[name]
	if i >= len(row) {
		return "", false
	}
	return row[i], true
}

func (idx columnIndex) triangle(row []string) (model.Triangle, error) {
	values := make(map[string]string, len(Header))
	for _, name := range Header {
		v, ok := idx.field(row, name)
		if !ok {
			return model.Triangle{}, fmt.Errorf("row has %d fields, missing %s", len(row), name)
		}
		values[name] = v
	}

	weights := make(map[string]float64, 3)
	for _, name := range []string{ColumnAToBWeight, ColumnCToBWeight, ColumnAToCWeight} {
		w, err := strconv.ParseFloat(strings.TrimSpace(values[name]), 64)
		if err != nil {
			return model.Triangle{}, fmt.Errorf("%s: %w", name, model.ErrInvalidWeight)
		}
		weights[name] = w
	}

	return model.NewTriangle(
		values[ColumnA], values[ColumnB], values[ColumnC],
		values[ColumnAToB], values[ColumnCToB], values[ColumnAToC],
		weights[ColumnAToBWeight], weights[ColumnCToBWeight], weights[ColumnAToCWeight],
	), nil
}

// ReadCSV parses triangle rows from r. Columns are located by header name,
// case-insensitively, so their order does not matter. Rows that cannot be
// parsed are returned as RowErrors and do not stop the read; a missing
// header or a malformed CSV stream does.
func ReadCSV(r io.Reader) ([]Record, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := newColumnIndex(header)
	if err != nil {
		return nil, nil, err
	}

	records := make([]Record, 0)
	rowErrs := make([]RowError, 0)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, rowErrs, err
		}
		line, _ := cr.FieldPos(0)

		tri, err := idx.triangle(row)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		records = append(records, Record{Line: line, Triangle: tri})
	}
	return records, rowErrs, nil
}

// WriteCSV writes triangles to w with the canonical header.
func WriteCSV(w io.Writer, triangles []model.Triangle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, t := range triangles {
		row := []string{
			t.A, t.B, t.C,
			t.AToB.Type, t.CToB.Type, t.AToC.Type,
			formatWeight(t.AToB.Weight), formatWeight(t.CToB.Weight), formatWeight(t.AToC.Weight),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}

// sourceRow is a parsed record tagged with the index of its input file.
type sourceRow struct {
	file int
	Record
}

// nodeGroup holds the rows of one source node, across all input files, in
// input order.
type nodeGroup struct {
	node string
	rows []sourceRow
}

// files returns the indexes of the files contributing to g, in order of
// first appearance.
func (g nodeGroup) files() []int {
	seen := make(map[int]bool, 1)
	files := make([]int, 0, 1)
	for _, r := range g.rows {
		if !seen[r.file] {
			seen[r.file] = true
			files = append(files, r.file)
		}
	}
	return files
}

// groupBySource groups the records of every file by normalized node A,
// keeping the order in which nodes first appear. A node found in several
// files ends up in a single group. Rows without a source node are returned
// as RowErrors, indexed like records.
func groupBySource(records [][]Record) ([]nodeGroup, [][]RowError) {
	groups := make([]nodeGroup, 0)
	positions := make(map[string]int)
	rowErrs := make([][]RowError, len(records))

	for file, recs := range records {
		for _, rec := range recs {
			node := model.NormalizeIdentifier(rec.Triangle.A)
			if node == "" {
				rowErrs[file] = append(rowErrs[file], RowError{Line: rec.Line, Err: model.ErrEmptyNode})
				continue
			}
			pos, ok := positions[node]
			if !ok {
				pos = len(groups)
				positions[node] = pos
				groups = append(groups, nodeGroup{node: node})
			}
			groups[pos].rows = append(groups[pos].rows, sourceRow{file: file, Record: rec})
		}
	}
	return groups, rowErrs
}
