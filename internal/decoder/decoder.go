// Package decoder turns resolved flash events into grid selections.
//
// The Decoder is a three-state machine:
//
//	EMPTY ──row──▶ ROW_PENDING ──col──▶ decode, EMPTY
//	EMPTY ──col──▶ COL_PENDING ──row──▶ decode, EMPTY
//
// A trigger that resolves the axis already pending overwrites it; values do
// not accumulate. ROW_PENDING and COL_PENDING never coexist as a stable
// state: supplying the missing axis decodes and clears both slots before the
// transition returns.
//
// The Decoder is not safe for concurrent use. It is owned by the engine's
// single-writer loop.
package decoder

import (
	"fmt"
	"time"

	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/grid"
)

// State is the decoder's position in the selection cycle.
type State int

const (
	// StateEmpty has no pending axis.
	StateEmpty State = iota
	// StateRowPending holds a row awaiting a column.
	StateRowPending
	// StateColPending holds a column awaiting a row.
	StateColPending
)

// String returns the upper-case state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateRowPending:
		return "ROW_PENDING"
	case StateColPending:
		return "COL_PENDING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "EMPTY":
		*s = StateEmpty
	case "ROW_PENDING":
		*s = StateRowPending
	case "COL_PENDING":
		*s = StateColPending
	default:
		return fmt.Errorf("unknown decoder state %q", text)
	}
	return nil
}

// Selection is the pending row/column pair. A nil field is unset.
type Selection struct {
	Row *int `json:"row,omitempty"`
	Col *int `json:"col,omitempty"`
}

// Decoded is a completed row+column selection.
type Decoded struct {
	Symbol string `json:"symbol"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

// Outcome classifies what a trigger did.
type Outcome int

const (
	// OutcomeNoFlash means the log was empty; nothing changed.
	OutcomeNoFlash Outcome = iota + 1
	// OutcomeThrottled means the trigger arrived inside the minimum gap.
	OutcomeThrottled
	// OutcomePending means one axis was captured (or overwritten).
	OutcomePending
	// OutcomeDecoded means a symbol was emitted and the state reset.
	OutcomeDecoded
)

// String returns a lower-case outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoFlash:
		return "no_flash"
	case OutcomeThrottled:
		return "throttled"
	case OutcomePending:
		return "pending"
	case OutcomeDecoded:
		return "decoded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes one transition.
type Result struct {
	Outcome Outcome
	Flash   flash.Event // resolved flash; zero for OutcomeNoFlash
	Decoded Decoded     // set only for OutcomeDecoded
}

// Source is the read side of the flash log.
type Source interface {
	MostRecent() (flash.Event, bool)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMinGap drops triggers that arrive less than gap after the last
// accepted trigger. Zero (the default) disables the limit.
func WithMinGap(gap time.Duration) Option {
	return func(d *Decoder) {
		if gap > 0 {
			d.minGap = gap
		}
	}
}

// Decoder holds at most one pending row and one pending column.
type Decoder struct {
	grid   *grid.Grid
	minGap time.Duration

	row, col       int
	hasRow, hasCol bool

	lastAccepted time.Time
}

// New returns a Decoder in StateEmpty for g.
func New(g *grid.Grid, opts ...Option) *Decoder {
	d := &Decoder{grid: g}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnTrigger resolves the most recent flash from src into the selection.
// at is the trigger instant (the probability sample's timestamp); it is only
// consulted when a minimum gap is configured.
func (d *Decoder) OnTrigger(src Source, at time.Time) Result {
	ev, ok := src.MostRecent()
	if !ok {
		return Result{Outcome: OutcomeNoFlash}
	}

	if d.minGap > 0 && !d.lastAccepted.IsZero() && at.Sub(d.lastAccepted) < d.minGap {
		return Result{Outcome: OutcomeThrottled, Flash: ev}
	}
	d.lastAccepted = at

	return d.Apply(ev)
}

// Apply runs the transition for a resolved flash event directly.
// Events whose index is outside the grid leave the state untouched.
func (d *Decoder) Apply(ev flash.Event) Result {
	if !d.grid.Contains(ev.Axis, ev.Index) {
		return Result{Outcome: OutcomeNoFlash, Flash: ev}
	}

	switch ev.Axis {
	case grid.Row:
		d.row, d.hasRow = ev.Index, true
	case grid.Col:
		d.col, d.hasCol = ev.Index, true
	}

	if d.hasRow && d.hasCol {
		out := Decoded{
			Symbol: d.grid.At(d.row, d.col),
			Row:    d.row,
			Col:    d.col,
		}
		d.clear()
		return Result{Outcome: OutcomeDecoded, Flash: ev, Decoded: out}
	}

	return Result{Outcome: OutcomePending, Flash: ev}
}

// Reset returns to StateEmpty. The minimum-gap timer is also cleared.
func (d *Decoder) Reset() {
	d.clear()
	d.lastAccepted = time.Time{}
}

// State returns the current state.
func (d *Decoder) State() State {
	switch {
	case d.hasRow:
		return StateRowPending
	case d.hasCol:
		return StateColPending
	default:
		return StateEmpty
	}
}

// Pending returns a copy of the pending selection.
func (d *Decoder) Pending() Selection {
	var sel Selection
	if d.hasRow {
		r := d.row
		sel.Row = &r
	}
	if d.hasCol {
		c := d.col
		sel.Col = &c
	}
	return sel
}

func (d *Decoder) clear() {
	d.row, d.col = 0, 0
	d.hasRow, d.hasCol = false, false
}
