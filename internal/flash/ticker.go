package flash

import (
	"sync"
	"time"
)

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

// NewTimeTicker is the production TickerFunc backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// ManualTicker fires only when Fire is called. Used by tests and the
// scenario harness to simulate timer ticks.
type ManualTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
}

// NewManualTicker creates an unfired ticker.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time, 1)}
}

// Func returns a TickerFunc that always hands out this ticker, re-armed.
func (m *ManualTicker) Func() TickerFunc {
	return func(time.Duration) Ticker {
		m.rearm()
		return m
	}
}

// C implements Ticker.
func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Stop implements Ticker.
func (m *ManualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Fire delivers one tick without blocking. Returns false when the ticker is
// stopped or a previous tick has not been consumed yet.
func (m *ManualTicker) Fire(at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	select {
	case m.ch <- at:
		return true
	default:
		return false
	}
}

// Stopped reports whether Stop has been called.
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// rearm clears the stopped flag so the same ManualTicker can serve the next
// Start.
func (m *ManualTicker) rearm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = false
}
