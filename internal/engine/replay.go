package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/grid"
)

// ReplayOptions are the decoder settings a journal is replayed with.
type ReplayOptions struct {
	LogWindow int
	MinGap    time.Duration
}

// ReplayResult compares a replayed journal with what it recorded.
type ReplayResult struct {
	Decoded  []decoder.Decoded `json:"decoded"`
	Recorded []decoder.Decoded `json:"recorded"`
	Text     string            `json:"text"`

	// OutcomeMismatches counts triggers whose replayed outcome differs from
	// the recorded one.
	OutcomeMismatches int  `json:"outcome_mismatches"`
	Match             bool `json:"match"`
}

// Replay re-runs a session journal through a fresh flash log and decoder.
//
// Flash, trigger, and reset entries are inputs; decode entries are the
// recorded outputs the replay is checked against. Entries must be in
// strictly increasing seq order, as store.ReplaySession returns them.
//
// The engine's transitions depend only on entry order, never on wall time
// (except for the minimum gap, which uses the recorded trigger instants), so
// a journal written by a healthy engine always replays to Match == true.
func Replay(g *grid.Grid, entries []Entry, opts ReplayOptions) (*ReplayResult, error) {
	if g == nil {
		return nil, fmt.Errorf("replay: nil grid")
	}

	log := flash.NewLog(opts.LogWindow)
	dec := decoder.New(g, decoder.WithMinGap(opts.MinGap))
	var text decoder.Transcript

	res := &ReplayResult{
		Decoded:  []decoder.Decoded{},
		Recorded: []decoder.Decoded{},
	}

	var lastSeq int64
	for i, e := range entries {
		if i > 0 && e.Seq <= lastSeq {
			return nil, fmt.Errorf("replay: entry %d: seq %d not after %d", i, e.Seq, lastSeq)
		}
		lastSeq = e.Seq

		switch e.Kind {
		case EntryFlash:
			if e.Flash == nil {
				return nil, fmt.Errorf("replay: entry seq=%d: flash entry without flash", e.Seq)
			}
			log.Append(*e.Flash)

		case EntryTrigger:
			out := dec.OnTrigger(log, e.At)
			if e.Outcome != "" && out.Outcome.String() != e.Outcome {
				res.OutcomeMismatches++
			}
			if out.Outcome == decoder.OutcomeDecoded {
				res.Decoded = append(res.Decoded, out.Decoded)
				text.Append(out.Decoded)
			}

		case EntryDecode:
			if e.Decoded == nil {
				return nil, fmt.Errorf("replay: entry seq=%d: decode entry without symbol", e.Seq)
			}
			res.Recorded = append(res.Recorded, *e.Decoded)

		case EntryReset:
			dec.Reset()

		default:
			return nil, fmt.Errorf("replay: entry seq=%d: unknown kind %q", e.Seq, e.Kind)
		}
	}

	res.Text = text.String()
	res.Match = res.OutcomeMismatches == 0 && slices.Equal(res.Decoded, res.Recorded)
	return res, nil
}
