package decoder

import (
	"strings"

	"github.com/roach88/speller/internal/grid"
)

// Transcript accumulates decoded symbols into text.
// The line-break glyph becomes a newline; every other symbol is appended
// verbatim.
type Transcript struct {
	b     strings.Builder
	count int
}

// Append adds one decoded symbol.
func (t *Transcript) Append(d Decoded) {
	t.count++
	if d.Symbol == grid.LineBreak {
		t.b.WriteByte('\n')
		return
	}
	t.b.WriteString(d.Symbol)
}

// String returns the text so far.
func (t *Transcript) String() string { return t.b.String() }

// Len returns the number of symbols appended.
func (t *Transcript) Len() int { return t.count }

// Reset clears the transcript.
func (t *Transcript) Reset() {
	t.b.Reset()
	t.count = 0
}

// Text renders a symbol sequence the same way Transcript does.
func Text(symbols []Decoded) string {
	var t Transcript
	for _, d := range symbols {
		t.Append(d)
	}
	return t.String()
}
