package main

import (
	"errors"
	"fmt"
)

// Sheet extents are kept between 1 and these bounds.
const (
	maxRows = 1000
	maxCols = 100
)

// ErrInvalidSize is returned when a sheet would have no rows or columns, or
// more than maxRows rows or maxCols columns.
var ErrInvalidSize = errors.New("invalid sheet size")

func checkSize(rows, cols int) error {
	if rows < 1 || cols < 1 || rows > maxRows || cols > maxCols {
		return fmt.Errorf("%w: %dx%d (limit %dx%d)", ErrInvalidSize, rows, cols, maxRows, maxCols)
	}
	return nil
}

// Sheet is the sparse data model behind a grid. Values and sums are only
// stored when present; a missing key is an absent value, distinct from "".
//
// Rows and Cols are the grid extents. Only the structural editor grows them.
type Sheet struct {
	Rows int
	Cols int

	values map[Location]string
	sums   map[int]float64
}

// NewSheet creates an empty sheet of the given size.
func NewSheet(rows, cols int) (*Sheet, error) {
	if err := checkSize(rows, cols); err != nil {
		return nil, err
	}
	return &Sheet{
		Rows:   rows,
		Cols:   cols,
		values: make(map[Location]string),
		sums:   make(map[int]float64),
	}, nil
}

// Value returns the value at loc and whether one is present.
func (s *Sheet) Value(loc Location) (string, bool) {
	v, ok := s.values[loc]
	return v, ok
}

// SetValue stores v at loc. An empty string is stored as a present value.
func (s *Sheet) SetValue(loc Location, v string) {
	s.values[loc] = v
}

// ClearValue makes the value at loc absent.
func (s *Sheet) ClearValue(loc Location) {
	delete(s.values, loc)
}

// moveValue copies the value at from to to, absence included.
func (s *Sheet) moveValue(from, to Location) {
	if v, ok := s.values[from]; ok {
		s.values[to] = v
		return
	}
	delete(s.values, to)
}

// ColumnValues returns the present values of col in row order.
func (s *Sheet) ColumnValues(col int) []string {
	var out []string
	for row := 0; row < s.Rows; row++ {
		if v, ok := s.values[Location{Row: row, Col: col}]; ok {
			out = append(out, v)
		}
	}
	return out
}

// ColumnSum returns the cached sum of col and whether one is set.
func (s *Sheet) ColumnSum(col int) (float64, bool) {
	v, ok := s.sums[col]
	return v, ok
}

// SetColumnSum caches sum for col.
func (s *Sheet) SetColumnSum(col int, sum float64) {
	s.sums[col] = sum
}

// ClearColumnSum resets the sum of col to empty.
func (s *Sheet) ClearColumnSum(col int) {
	delete(s.sums, col)
}

// RecomputeColumnSum recalculates the sum of col from its current values.
func (s *Sheet) RecomputeColumnSum(col int) {
	if sum, ok := SumValues(s.ColumnValues(col)); ok {
		s.sums[col] = sum
		return
	}
	delete(s.sums, col)
}

// RecomputeSums recalculates every column sum.
func (s *Sheet) RecomputeSums() {
	for col := 1; col <= s.Cols; col++ {
		s.RecomputeColumnSum(col)
	}
}

// SheetSnapshot is the JSON form of a sheet. Nil entries are absent.
type SheetSnapshot struct {
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Values [][]*string `json:"values"`
	Sums   []*float64  `json:"sums"`
}

// Snapshot copies the sheet into a dense, serialisable form. Values[r][c-1]
// holds the cell at row r, column c.
func (s *Sheet) Snapshot() SheetSnapshot {
	snap := SheetSnapshot{
		Rows:   s.Rows,
		Cols:   s.Cols,
		Values: make([][]*string, s.Rows),
		Sums:   make([]*float64, s.Cols),
	}
	for row := range snap.Values {
		snap.Values[row] = make([]*string, s.Cols)
		for col := 1; col <= s.Cols; col++ {
			if v, ok := s.values[Location{Row: row, Col: col}]; ok {
				snap.Values[row][col-1] = &v
			}
		}
	}
	for col := 1; col <= s.Cols; col++ {
		if v, ok := s.sums[col]; ok {
			snap.Sums[col-1] = &v
		}
	}
	return snap
}

// sheetFromRows builds a sheet from a dense table of strings, as produced by
// the importers. Empty strings are absent cells. The sheet is at least
// minRows x minCols, grows to fit the table, and has all sums computed.
func sheetFromRows(rows [][]string, minRows, minCols int) (*Sheet, error) {
	nRows, nCols := max(len(rows), minRows, 1), max(minCols, 1)
	for _, r := range rows {
		nCols = max(nCols, len(r))
	}
	s, err := NewSheet(nRows, nCols)
	if err != nil {
		return nil, err
	}
	for r, cells := range rows {
		for c, v := range cells {
			if v != "" {
				s.SetValue(Location{Row: r, Col: c + 1}, v)
			}
		}
	}
	s.RecomputeSums()
	return s, nil
}
