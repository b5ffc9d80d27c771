package main

import (
	"errors"
	"fmt"
)

const (
	// HeaderRow is the row of a selection made on the column letters.
	// The whole column is selected.
	HeaderRow = -1
	// NumberColumn is the column of a selection made on the row numbers.
	// The whole row is selected.
	NumberColumn = 0
)

// ErrOutOfRange is returned when DOM coordinates fall outside the clickable
// part of the table (the footer, or past the current extents).
var ErrOutOfRange = errors.New("location out of range")

// Location identifies a cell. Rows are 0-based, columns are 1-based, and the
// HeaderRow / NumberColumn sentinels select a whole column / row.
type Location struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// FirstCell is the initial selection and the target of a corner click.
var FirstCell = Location{Row: 0, Col: 1}

func (l Location) String() string {
	return fmt.Sprintf("(%d,%d)", l.Row, l.Col)
}

// IsColumnSelection reports whether l selects the whole column l.Col.
func (l Location) IsColumnSelection() bool {
	return l.Row == HeaderRow
}

// IsRowSelection reports whether l selects the whole row l.Row.
func (l Location) IsRowSelection() bool {
	return l.Row != HeaderRow && l.Col == NumberColumn
}

// IsCell reports whether l names a single data cell.
func (l Location) IsCell() bool {
	return l.Row != HeaderRow && l.Col != NumberColumn
}

// LocationFromDOM converts the rowIndex of the clicked row within the table
// and the cellIndex of the clicked cell within its row into a Location.
// The header row is table row 0 and the row-number cell is index 0 of each row.
func LocationFromDOM(rowIndex, cellIndex, rows, cols int) (Location, error) {
	if rowIndex < 0 || rowIndex > rows || cellIndex < 0 || cellIndex > cols {
		return Location{}, fmt.Errorf("%w: row index %d, cell index %d in %dx%d grid",
			ErrOutOfRange, rowIndex, cellIndex, rows, cols)
	}
	loc := Location{Row: rowIndex - 1, Col: cellIndex}
	if loc.Row == HeaderRow && loc.Col == NumberColumn {
		return FirstCell, nil
	}
	return loc, nil
}
