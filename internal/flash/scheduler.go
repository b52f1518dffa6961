package flash

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/speller/internal/grid"
)

// DefaultInterval is the flash cadence used when none is configured.
const DefaultInterval = 1000 * time.Millisecond

// Emitter receives each flash event as it is produced.
// It is called with the scheduler lock held and must not block or call back
// into the Scheduler.
type Emitter func(Event)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the flash cadence. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPicker overrides the axis/index picker (default: time-seeded RandomPicker).
func WithPicker(p Picker) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.picker = p
		}
	}
}

// WithTicker overrides the ticker factory (default: NewTimeTicker).
func WithTicker(f TickerFunc) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.newTicker = f
		}
	}
}

// WithNow overrides the timestamp source (default: time.Now).
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler emits one flash event per interval while started.
//
// Thread-safety: all methods are safe for concurrent use. Emission, Stop and
// the highlight observable share one mutex, which is what makes Stop a hard
// barrier for further emissions.
type Scheduler struct {
	rows, cols int
	picker     Picker
	newTicker  TickerFunc
	now        func() time.Time

	mu        sync.Mutex
	interval  time.Duration
	active    *Handle
	gen       uint64
	seq       int64
	highlight Event
	lit       bool
}

// NewScheduler creates a stopped scheduler for g.
func NewScheduler(g *grid.Grid, opts ...Option) *Scheduler {
	s := &Scheduler{
		rows:      g.Rows(),
		cols:      g.Cols(),
		newTicker: NewTimeTicker,
		now:       time.Now,
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.picker == nil {
		s.picker = NewRandomPicker(0)
	}
	return s
}

// Handle owns one run of the scheduler: its ticker and its tick goroutine.
type Handle struct {
	s      *Scheduler
	gen    uint64
	emit   Emitter
	ticker Ticker

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Start begins emitting events to emit. If the scheduler is already running
// it returns the existing Handle and false; emit is ignored in that case.
//
// The tick goroutine also stops when ctx is cancelled, releasing the Handle
// exactly as Stop would.
func (s *Scheduler) Start(ctx context.Context, emit Emitter) (*Handle, bool) {
	s.mu.Lock()
	if s.active != nil {
		h := s.active
		s.mu.Unlock()
		return h, false
	}

	s.gen++
	h := &Handle{
		s:      s,
		gen:    s.gen,
		emit:   emit,
		ticker: s.newTicker(s.interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.active = h
	interval := s.interval
	s.mu.Unlock()

	slog.Debug("flash scheduler started", "gen", h.gen, "interval", interval)

	go h.loop(ctx)
	return h, true
}

// Stop cancels h and stops its ticker. After Stop returns no further event
// is emitted for h and the highlight is cleared. Stopping a stale or nil
// handle is a no-op.
func (s *Scheduler) Stop(h *Handle) {
	if h == nil || h.s != s {
		return
	}

	s.mu.Lock()
	wasActive := s.active == h
	if wasActive {
		s.active = nil
		s.lit = false
		s.highlight = Event{}
	}
	s.mu.Unlock()

	h.stopOnce.Do(func() {
		h.ticker.Stop()
		close(h.stop)
	})

	if wasActive {
		slog.Debug("flash scheduler stopped", "gen", h.gen)
	}
}

// StopActive stops whichever handle is running, if any.
func (s *Scheduler) StopActive() {
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	s.Stop(h)
}

// Running reports whether a handle is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// ActiveGen returns the generation of the running handle, or 0 when stopped.
func (s *Scheduler) ActiveGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0
	}
	return s.active.gen
}

// Highlight returns the currently highlighted flash, or false when nothing
// is lit (never started, or stopped).
func (s *Scheduler) Highlight() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlight, s.lit
}

// Interval returns the configured cadence.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the cadence. It takes effect on the next Start.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
}

// Gen returns the generation this handle was started with.
func (h *Handle) Gen() uint64 { return h.gen }

// Stop is shorthand for h's scheduler Stop(h).
func (h *Handle) Stop() { h.s.Stop(h) }

// Done is closed once the tick goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Active reports whether h is still the scheduler's running handle.
func (h *Handle) Active() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.active == h
}

// Tick performs one emission synchronously: pick, stamp, highlight, emit.
// It is the same path the ticker drives. Returns false, emitting nothing,
// once h has been stopped.
func (h *Handle) Tick() (Event, bool) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != h {
		return Event{}, false
	}

	axis, index := s.picker.Pick(s.rows, s.cols)
	s.seq++
	ev := Event{
		Axis:  axis,
		Index: index,
		Seq:   s.seq,
		Gen:   h.gen,
		At:    s.now(),
	}
	s.highlight = ev
	s.lit = true

	if h.emit != nil {
		h.emit(ev)
	}
	return ev, true
}

// loop drives Tick from the ticker until stopped or ctx is done.
// Every exit path releases the handle and the ticker.
func (h *Handle) loop(ctx context.Context) {
	defer close(h.done)
	defer h.s.Stop(h)

	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}

	for {
		select {
		case <-h.stop:
			return
		case <-ctxDone:
			return
		case <-h.ticker.C():
			h.Tick()
		}
	}
}
