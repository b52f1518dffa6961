package engine

import (
	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/flash"
)

// Counters tally what the loop has processed this session.
type Counters struct {
	Flashes       int64 `json:"flashes"`
	StaleEvents   int64 `json:"stale_events"`
	Triggers      int64 `json:"triggers"`
	EmptyTriggers int64 `json:"empty_triggers"`
	Throttled     int64 `json:"throttled"`
	Decodes       int64 `json:"decodes"`
	Resets        int64 `json:"resets"`
	RecordErrors  int64 `json:"record_errors"`
}

// Snapshot is the presentation-facing view of the engine.
type Snapshot struct {
	Session     string            `json:"session"`
	Running     bool              `json:"running"`
	Highlight   *flash.Event      `json:"highlight,omitempty"`
	State       decoder.State     `json:"state"`
	Pending     decoder.Selection `json:"pending"`
	LastDecoded *decoder.Decoded  `json:"last_decoded,omitempty"`
	Text        string            `json:"text"`
	Connected   bool              `json:"connected"`
	Threshold   float64           `json:"threshold"`
	IntervalMS  int64             `json:"interval_ms"`
	Trigger     string            `json:"trigger"`
	Counters    Counters          `json:"counters"`
	LastFault   string            `json:"last_fault,omitempty"`
}

// view is the loop-owned part of the snapshot, published under stateMu.
type view struct {
	state       decoder.State
	pending     decoder.Selection
	lastDecoded *decoder.Decoded
	text        string
	counters    Counters
	lastFault   string
}

// Snapshot returns the current view. Safe from any goroutine.
//
// Scheduler and connection fields are read live; decoder fields reflect the
// last event the loop finished processing.
func (e *Engine) Snapshot() Snapshot {
	e.stateMu.RLock()
	v := e.view
	e.stateMu.RUnlock()

	snap := Snapshot{
		Session:    e.session.ID,
		Running:    e.sched.Running(),
		State:      v.state,
		Pending:    v.pending,
		Text:       v.text,
		Connected:  e.Connected(),
		Threshold:  e.mon.Threshold(),
		IntervalMS: e.sched.Interval().Milliseconds(),
		Trigger:    e.mon.Mode().String(),
		Counters:   v.counters,
		LastFault:  v.lastFault,
	}
	if hl, ok := e.sched.Highlight(); ok {
		snap.Highlight = &hl
	}
	if v.lastDecoded != nil {
		d := *v.lastDecoded
		snap.LastDecoded = &d
	}
	return snap
}
