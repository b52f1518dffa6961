package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionIDGenerator generates session identifiers.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type SessionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session IDs, so listing
// sessions by ID also lists them by start time.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined session IDs for testing.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed, to catch test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all session ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Session describes one engine lifetime: the grid and settings it started
// with. Recorders persist it so a journal can be replayed later.
type Session struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	Grid       [][]string `json:"grid"`
	Threshold  float64    `json:"threshold"`
	IntervalMS int64      `json:"interval_ms"`
	Trigger    string     `json:"trigger"`
	LogWindow  int        `json:"log_window"`
	MinGapMS   int64      `json:"min_gap_ms"`
}

// ReplayOptions returns the decoder settings the session ran with.
func (s Session) ReplayOptions() ReplayOptions {
	return ReplayOptions{
		LogWindow: s.LogWindow,
		MinGap:    time.Duration(s.MinGapMS) * time.Millisecond,
	}
}
