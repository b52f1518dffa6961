// Package grid defines the immutable symbol matrix the speller selects from.
//
// A Grid is built once at startup and never changes. Every row has the same
// number of columns and both dimensions are at least one. Symbols are stored
// NFC-normalised so that two visually identical glyphs always compare equal,
// regardless of how the configuration file encoded them.
package grid

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LineBreak is the glyph used in the reference grid to request a new line.
const LineBreak = "⏎"

// Space is the literal space symbol of the reference grid.
const Space = " "

// Axis identifies one dimension of the grid.
type Axis int

const (
	// Row selects a grid row.
	Row Axis = iota + 1
	// Col selects a grid column.
	Col
)

// String returns "row" or "col".
func (a Axis) String() string {
	switch a {
	case Row:
		return "row"
	case Col:
		return "col"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis converts "row"/"col" (also "column") into an Axis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "row":
		return Row, nil
	case "col", "column":
		return Col, nil
	default:
		return 0, fmt.Errorf("unknown axis %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Axis) MarshalText() ([]byte, error) {
	if a != Row && a != Col {
		return nil, fmt.Errorf("invalid axis %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Axis) UnmarshalText(text []byte) error {
	v, err := ParseAxis(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Grid is a rectangular, immutable matrix of symbols.
type Grid struct {
	cells [][]string
	cols  int
}

// New validates rows and returns a Grid holding a private copy of them.
//
// Returns a *ShapeError if rows is empty, any row is empty, or rows differ
// in length.
func New(rows [][]string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, &ShapeError{Reason: "grid has no rows", Row: NoRow}
	}

	cols := len(rows[0])
	if cols == 0 {
		return nil, &ShapeError{Reason: "grid has no columns", Row: 0}
	}

	cells := make([][]string, len(rows))
	for r, row := range rows {
		if len(row) != cols {
			return nil, &ShapeError{
				Reason: fmt.Sprintf("row has %d columns, expected %d", len(row), cols),
				Row:    r,
			}
		}
		cells[r] = make([]string, cols)
		for c, sym := range row {
			cells[r][c] = norm.NFC.String(sym)
		}
	}

	return &Grid{cells: cells, cols: cols}, nil
}

// MustNew is like New but panics on an invalid shape.
// Intended for package-level literals and tests.
func MustNew(rows [][]string) *Grid {
	g, err := New(rows)
	if err != nil {
		panic(err)
	}
	return g
}

// DefaultRows returns the reference 5x6 layout: A-Z, then '-', space, '.'
// and the line-break glyph.
func DefaultRows() [][]string {
	return [][]string{
		{"A", "B", "C", "D", "E", "F"},
		{"G", "H", "I", "J", "K", "L"},
		{"M", "N", "O", "P", "Q", "R"},
		{"S", "T", "U", "V", "W", "X"},
		{"Y", "Z", "-", Space, ".", LineBreak},
	}
}

// Default returns the reference grid.
func Default() *Grid {
	return MustNew(DefaultRows())
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return len(g.cells) }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Len returns the number of valid indices along axis.
func (g *Grid) Len(axis Axis) int {
	switch axis {
	case Row:
		return g.Rows()
	case Col:
		return g.Cols()
	default:
		return 0
	}
}

// Contains reports whether index is valid along axis.
func (g *Grid) Contains(axis Axis, index int) bool {
	return index >= 0 && index < g.Len(axis)
}

// At returns the symbol at (row, col). It panics when out of range, like a
// slice index would.
func (g *Grid) At(row, col int) string {
	return g.cells[row][col]
}

// Lookup returns the symbol at (row, col) and whether it is in range.
func (g *Grid) Lookup(row, col int) (string, bool) {
	if !g.Contains(Row, row) || !g.Contains(Col, col) {
		return "", false
	}
	return g.cells[row][col], true
}

// Row returns a copy of row r.
func (g *Grid) Row(r int) []string {
	out := make([]string, g.cols)
	copy(out, g.cells[r])
	return out
}

// Cells returns a deep copy of the grid contents.
func (g *Grid) Cells() [][]string {
	out := make([][]string, len(g.cells))
	for r := range g.cells {
		out[r] = g.Row(r)
	}
	return out
}

// String renders the grid one row per line, symbols separated by spaces.
// The space symbol is shown as '␣' so columns stay aligned.
func (g *Grid) String() string {
	var b strings.Builder
	for r, row := range g.cells {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c, sym := range row {
			if c > 0 {
				b.WriteByte(' ')
			}
			if sym == Space {
				sym = "␣"
			}
			b.WriteString(sym)
		}
	}
	return b.String()
}
