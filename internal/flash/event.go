// Package flash schedules row/column stimuli and keeps the trailing log of
// what was flashed.
//
// ARCHITECTURE:
//
// The Scheduler owns a repeating ticker. Each tick picks an axis and an index
// uniformly at random, stamps a FlashEvent, updates the highlighted cell and
// hands the event to an Emitter (normally the engine's queue). Ticks are
// strictly sequential: one goroutine per running Handle, and each emission
// happens under the scheduler lock.
//
// Handles are explicit. Start returns the Handle that owns the ticker; Stop
// takes it back. Once Stop returns no further event is emitted for that
// Handle, even if a tick was already in flight.
//
// The Log is a bounded ring. Only the most recent entry is read by the
// decoder, so the default capacity is one.
package flash

import (
	"fmt"
	"time"

	"github.com/roach88/speller/internal/grid"
)

// Event records one flash: which axis/index was stimulated and when.
// Events are created only by the Scheduler and are never mutated.
type Event struct {
	Axis  grid.Axis `json:"axis"`
	Index int       `json:"index"`

	// Seq is the scheduler-local flash number, starting at 1 and strictly
	// increasing across restarts of the same Scheduler.
	Seq int64 `json:"seq"`

	// Gen identifies the Start call that produced the event.
	Gen uint64 `json:"gen"`

	// At is the monotonic instant of emission.
	At time.Time `json:"at"`
}

// String returns a compact description such as "row[2]#14".
func (e Event) String() string {
	return fmt.Sprintf("%s[%d]#%d", e.Axis, e.Index, e.Seq)
}

// IsZero reports whether e is the zero Event.
func (e Event) IsZero() bool {
	return e.Seq == 0 && e.Axis == 0
}
