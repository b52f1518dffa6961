package grid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Default(t *testing.T) {
	g := Default()

	assert.Equal(t, 5, g.Rows())
	assert.Equal(t, 6, g.Cols())
	assert.Equal(t, "A", g.At(0, 0))
	assert.Equal(t, "P", g.At(2, 3))
	assert.Equal(t, LineBreak, g.At(4, 5))
	assert.Equal(t, Space, g.At(4, 3))
	assert.Equal(t, []string{"M", "N", "O", "P", "Q", "R"}, g.Row(2))
}

func TestNew_RejectsEmpty(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
	assert.Equal(t, "invalid grid shape: grid has no rows", err.Error())

	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NoRow, se.Row)

	_, err = New([][]string{{}})
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
	assert.Equal(t, "invalid grid shape: row 0: grid has no columns", err.Error())
}

func TestShapeError_RowDecidesMessage(t *testing.T) {
	assert.Equal(t, "invalid grid shape: empty", (&ShapeError{Reason: "empty", Row: NoRow}).Error())
	assert.Equal(t, "invalid grid shape: row 2: ragged", (&ShapeError{Reason: "ragged", Row: 2}).Error())
}

func TestNew_RejectsRagged(t *testing.T) {
	_, err := New([][]string{{"A", "B"}, {"C"}})
	require.Error(t, err)

	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Row)
	assert.Contains(t, err.Error(), "row 1")
}

func TestNew_CopiesInput(t *testing.T) {
	rows := [][]string{{"A", "B"}}
	g := MustNew(rows)

	rows[0][0] = "Z"
	assert.Equal(t, "A", g.At(0, 0), "grid must not alias caller slices")

	row := g.Row(0)
	row[1] = "Z"
	assert.Equal(t, "B", g.At(0, 1), "Row must return a copy")

	cells := g.Cells()
	cells[0][0] = "Q"
	assert.Equal(t, "A", g.At(0, 0), "Cells must return a deep copy")
}

func TestNew_NormalisesSymbols(t *testing.T) {
	// "e" + combining acute accent normalises to the single code point "é".
	g := MustNew([][]string{{"e\u0301"}})
	assert.Equal(t, "\u00e9", g.At(0, 0))
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNew(nil) })
}

func TestContainsAndLookup(t *testing.T) {
	g := Default()

	assert.True(t, g.Contains(Row, 0))
	assert.True(t, g.Contains(Row, 4))
	assert.False(t, g.Contains(Row, 5))
	assert.True(t, g.Contains(Col, 5))
	assert.False(t, g.Contains(Col, 6))
	assert.False(t, g.Contains(Col, -1))
	assert.False(t, g.Contains(Axis(0), 0))

	sym, ok := g.Lookup(3, 1)
	assert.True(t, ok)
	assert.Equal(t, "T", sym)

	_, ok = g.Lookup(5, 0)
	assert.False(t, ok)
}

func TestAxis_TextRoundTrip(t *testing.T) {
	for _, a := range []Axis{Row, Col} {
		text, err := a.MarshalText()
		require.NoError(t, err)

		var got Axis
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, a, got)
	}

	_, err := Axis(7).MarshalText()
	assert.Error(t, err)

	a, err := ParseAxis("Column")
	require.NoError(t, err)
	assert.Equal(t, Col, a)

	_, err = ParseAxis("diagonal")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	g := MustNew([][]string{{"A", " "}, {"C", "D"}})
	assert.Equal(t, "A ␣\nC D", g.String())
}

func TestLookup_AllCells(t *testing.T) {
	g := Default()
	rows := DefaultRows()
	for r := range rows {
		for c := range rows[r] {
			t.Run(fmt.Sprintf("%d_%d", r, c), func(t *testing.T) {
				sym, ok := g.Lookup(r, c)
				require.True(t, ok)
				assert.Equal(t, rows[r][c], sym)
			})
		}
	}
}
