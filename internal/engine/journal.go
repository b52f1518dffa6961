package engine

import (
	"context"
	"time"

	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/flash"
)

// EntryKind names a journal entry.
type EntryKind string

const (
	EntryFlash   EntryKind = "flash"
	EntryTrigger EntryKind = "trigger"
	EntryDecode  EntryKind = "decode"
	EntryReset   EntryKind = "reset"
)

// Reset reasons recorded on EntryReset.
const (
	ResetCommand          = "command"
	ResetStop             = "stop"
	ResetSubscriptionLost = "subscription_lost"
)

// Entry is one journal record. Seq comes from the engine Sequencer and orders
// entries within a session; At is the wall-clock instant of the cause.
//
// Which fields are set depends on Kind:
//   - flash: Flash
//   - trigger: Probability, Outcome, and Flash when a flash was resolved
//   - decode: Decoded
//   - reset: Reason
type Entry struct {
	Seq         int64            `json:"seq"`
	Kind        EntryKind        `json:"kind"`
	At          time.Time        `json:"at"`
	Flash       *flash.Event     `json:"flash,omitempty"`
	Probability float64          `json:"probability,omitempty"`
	Outcome     string           `json:"outcome,omitempty"`
	Decoded     *decoder.Decoded `json:"decoded,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// Recorder receives the session and its journal from the Run loop.
// It is called synchronously from the loop, so it should be fast; errors are
// logged and counted, never retried.
type Recorder interface {
	BeginSession(ctx context.Context, s Session) error
	Record(ctx context.Context, e Entry) error
}
