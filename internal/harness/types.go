package harness

import (
	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/grid"
)

// TraceEvent is the observable effect of one step, taken after the loop has
// processed it. Queued scenarios leave State and Text at their zero values.
type TraceEvent struct {
	Step int    `json:"step"`
	Do   string `json:"do"`

	// OK reports whether the step took effect: a start or stop that changed
	// state, a tick that emitted, a sample that triggered, an attach that
	// subscribed.
	OK bool `json:"ok"`

	Flash   *TraceFlash   `json:"flash,omitempty"`
	Value   *float64      `json:"value,omitempty"`
	Decoded string        `json:"decoded,omitempty"`
	State   decoder.State `json:"state"`
	Text    string        `json:"text"`
}

// TraceFlash is the emitted flash without its wall-clock instant.
type TraceFlash struct {
	Axis  grid.Axis `json:"axis"`
	Index int       `json:"index"`
	Seq   int64     `json:"seq"`
}

// Final is the engine state after the last step.
type Final struct {
	Symbols     []string      `json:"symbols"`
	Text        string        `json:"text"`
	State       decoder.State `json:"state"`
	Running     bool          `json:"running"`
	Connected   bool          `json:"connected"`
	ReplayMatch bool          `json:"replay_match"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect check held and the journal replayed.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`
	Final Final        `json:"final"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Final:  Final{Symbols: []string{}},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
