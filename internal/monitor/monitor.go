// Package monitor watches an asynchronous probability stream and fires a
// decode trigger whenever a sample crosses the threshold.
//
// The predicate is evaluated per sample. In ModeLevel (the default) every
// sample strictly above the threshold triggers, so an elevated signal fires
// repeatedly; ModeEdge fires only on a below-to-above transition. The
// monitor never rate-limits; that is the decoder's job.
//
// Delivery goes through a Handle returned by Attach. Unsubscribe on the
// Handle is a hard barrier: once it returns, no further trigger is delivered.
package monitor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultThreshold is the cutoff used when none is configured.
const DefaultThreshold = 0.3

// ErrSubscriptionLost marks a probability stream that ended or failed.
var ErrSubscriptionLost = errors.New("probability subscription lost")

// Sample is one probability reading. Samples are transient: consumed on
// arrival and never retained.
type Sample struct {
	Value float64   `json:"probability"`
	At    time.Time `json:"at"`
}

// Mode selects how the threshold predicate fires.
type Mode int

const (
	// ModeLevel fires on every sample above the threshold.
	ModeLevel Mode = iota
	// ModeEdge fires only when a sample rises above the threshold after one
	// at or below it.
	ModeEdge
)

// String returns "level" or "edge".
func (m Mode) String() string {
	switch m {
	case ModeLevel:
		return "level"
	case ModeEdge:
		return "edge"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts "level"/"edge" into a Mode. Empty means ModeLevel.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "level":
		return ModeLevel, nil
	case "edge":
		return ModeEdge, nil
	default:
		return ModeLevel, fmt.Errorf("unknown trigger mode %q (want level or edge)", s)
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMode sets the trigger mode.
func WithMode(mode Mode) Option {
	return func(m *Monitor) { m.mode = mode }
}

// WithNow overrides the clock used to stamp samples that arrive without a
// timestamp.
func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor holds the threshold predicate.
//
// Thread-safety: safe for concurrent use.
type Monitor struct {
	now func() time.Time

	mu        sync.Mutex
	threshold float64
	mode      Mode
	above     bool // previous sample was above threshold (edge mode)
}

// New creates a monitor with the given threshold.
func New(threshold float64, opts ...Option) *Monitor {
	m := &Monitor{threshold: threshold, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate applies the predicate to one sample and reports whether it fires.
func (m *Monitor) Evaluate(s Sample) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	over := s.Value > m.threshold
	if m.mode == ModeEdge {
		fire := over && !m.above
		m.above = over
		return fire
	}
	return over
}

// Threshold returns the current cutoff.
func (m *Monitor) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold changes the cutoff for subsequent samples.
func (m *Monitor) SetThreshold(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = v
}

// Mode returns the trigger mode.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Reset forgets the edge-detection history.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.above = false
}

// stamp fills in a missing timestamp.
func (m *Monitor) stamp(s Sample) Sample {
	if s.At.IsZero() {
		s.At = m.now()
	}
	return s
}
