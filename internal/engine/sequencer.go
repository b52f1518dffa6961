package engine

import "sync/atomic"

// Sequencer hands out the journal's seq numbers.
//
// Seq orders entries within a session; replay trusts it over the wall-clock
// At field. Only the Run loop stamps entries, so the atomic exists for
// readers such as Recorded.
type Sequencer struct {
	last atomic.Int64
}

// Stamp assigns the next seq to e and returns it.
func (s *Sequencer) Stamp(e *Entry) int64 {
	e.Seq = s.last.Add(1)
	return e.Seq
}

// Recorded returns how many entries have been stamped.
func (s *Sequencer) Recorded() int64 {
	return s.last.Load()
}
