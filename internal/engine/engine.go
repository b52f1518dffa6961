package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/grid"
	"github.com/roach88/speller/internal/monitor"
)

// DecodeFunc receives every decoded symbol. Called from the Run loop; must
// not block.
type DecodeFunc func(decoder.Decoded)

// FaultFunc receives connectivity faults (RuntimeError with
// ErrCodeSubscriptionLost). Called from the Run loop; must not block.
type FaultFunc func(error)

// Engine is the single-writer speller event loop.
//
// Flash ticks, decode triggers, stream loss, and commands are queued in the
// order they are observed and processed one at a time by Run. The flash log,
// the decoder, and the transcript are touched only by the Run goroutine.
//
// Thread-safety model:
//   - Enqueue, StartFlashing, StopFlashing, Reset, Attach, Detach, Tick,
//     Offer, Set*, Snapshot, Sync: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	grid     *grid.Grid
	seq      Sequencer
	queue    *eventQueue
	sched    *flash.Scheduler
	mon      *monitor.Monitor
	log      *flash.Log
	dec      *decoder.Decoder
	text     decoder.Transcript
	session  Session
	now      func() time.Time
	recorder Recorder
	onDecode DecodeFunc
	onFault  FaultFunc

	// stoppedGen is the newest scheduler generation whose stop event the
	// loop has processed. A handle's flashes are always queued ahead of its
	// stop, so only flashes at or below it are stale. Owned by Run.
	stoppedGen uint64

	// ctlMu guards the producer handles.
	ctlMu       sync.Mutex
	flashHandle *flash.Handle
	monHandle   *monitor.Handle
	source      monitor.Source
	attachGen   uint64
	activeMon   atomic.Uint64 // attachGen of the live handle, 0 when detached

	stateMu sync.RWMutex
	view    view
}

// config collects option values before the components are built.
type config struct {
	interval  time.Duration
	threshold float64
	mode      monitor.Mode
	logWindow int
	minGap    time.Duration
	picker    flash.Picker
	ticker    flash.TickerFunc
	now       func() time.Time
	recorder  Recorder
	onDecode  DecodeFunc
	onFault   FaultFunc
	sessions  SessionIDGenerator
}

// Option configures an Engine.
type Option func(*config)

// WithInterval sets the flash cadence (default flash.DefaultInterval).
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithThreshold sets the probability cutoff (default monitor.DefaultThreshold).
func WithThreshold(v float64) Option {
	return func(c *config) { c.threshold = v }
}

// WithTriggerMode selects level or edge triggering (default level).
func WithTriggerMode(m monitor.Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithLogWindow sets how many flashes the log retains (default 1).
func WithLogWindow(n int) Option {
	return func(c *config) { c.logWindow = n }
}

// WithMinGap enables the decoder-side trigger rate limit.
func WithMinGap(d time.Duration) Option {
	return func(c *config) { c.minGap = d }
}

// WithPicker overrides the flash picker.
func WithPicker(p flash.Picker) Option {
	return func(c *config) { c.picker = p }
}

// WithTicker overrides the scheduler's ticker factory.
func WithTicker(f flash.TickerFunc) Option {
	return func(c *config) { c.ticker = f }
}

// WithNow overrides the wall clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithRecorder journals the session to r.
func WithRecorder(r Recorder) Option {
	return func(c *config) { c.recorder = r }
}

// WithDecodeHandler registers a callback for decoded symbols.
func WithDecodeHandler(f DecodeFunc) Option {
	return func(c *config) { c.onDecode = f }
}

// WithFaultHandler registers a callback for connectivity faults.
func WithFaultHandler(f FaultFunc) Option {
	return func(c *config) { c.onFault = f }
}

// WithSessionGenerator overrides session ID generation (default UUIDv7).
func WithSessionGenerator(g SessionIDGenerator) Option {
	return func(c *config) { c.sessions = g }
}

// New creates an Engine for g. The engine is idle until Run is called.
func New(g *grid.Grid, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, errors.New("engine: nil grid")
	}

	cfg := config{
		interval:  flash.DefaultInterval,
		threshold: monitor.DefaultThreshold,
		logWindow: flash.DefaultLogCapacity,
		now:       time.Now,
		sessions:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	schedOpts := []flash.Option{flash.WithInterval(cfg.interval), flash.WithNow(cfg.now)}
	if cfg.picker != nil {
		schedOpts = append(schedOpts, flash.WithPicker(cfg.picker))
	}
	if cfg.ticker != nil {
		schedOpts = append(schedOpts, flash.WithTicker(cfg.ticker))
	}

	e := &Engine{
		grid:     g,
		queue:    newEventQueue(),
		sched:    flash.NewScheduler(g, schedOpts...),
		mon:      monitor.New(cfg.threshold, monitor.WithMode(cfg.mode), monitor.WithNow(cfg.now)),
		log:      flash.NewLog(cfg.logWindow),
		dec:      decoder.New(g, decoder.WithMinGap(cfg.minGap)),
		now:      cfg.now,
		recorder: cfg.recorder,
		onDecode: cfg.onDecode,
		onFault:  cfg.onFault,
	}
	e.session = Session{
		ID:         cfg.sessions.Generate(),
		StartedAt:  cfg.now(),
		Grid:       g.Cells(),
		Threshold:  cfg.threshold,
		IntervalMS: e.sched.Interval().Milliseconds(),
		Trigger:    cfg.mode.String(),
		LogWindow:  e.log.Cap(),
		MinGapMS:   cfg.minGap.Milliseconds(),
	}
	e.view.state = decoder.StateEmpty

	return e, nil
}

// Grid returns the engine's grid.
func (e *Engine) Grid() *grid.Grid { return e.grid }

// Session returns the session this engine records under.
func (e *Engine) Session() Session { return e.session }

// Enqueue submits an event for processing by the Run loop.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// QueueLen returns the number of events waiting for the loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop is called. On exit the scheduler
// is stopped and the probability source detached.
//
// ERROR HANDLING: processing failures are logged with the event context and
// the loop continues. Nothing is retried.
func (e *Engine) Run(ctx context.Context) error {
	if e.recorder != nil {
		if err := e.recorder.BeginSession(ctx, e.session); err != nil {
			e.queue.Close()
			return fmt.Errorf("begin session: %w", err)
		}
	}

	slog.Info("engine starting",
		"session", e.session.ID,
		"rows", e.grid.Rows(),
		"cols", e.grid.Cols(),
		"threshold", e.mon.Threshold(),
		"interval", e.sched.Interval(),
		"trigger", e.mon.Mode().String(),
	)
	defer e.shutdown()

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled", "session", e.session.ID)
			e.queue.Close()
			e.drainBarriers()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed", "session", e.session.ID)
				return nil
			}
		}
	}
}

// Stop shuts the engine down. Run finishes the events already queued and
// returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) shutdown() {
	e.StopFlashing()
	e.Detach()
}

// drainBarriers releases Sync callers still waiting after cancellation.
func (e *Engine) drainBarriers() {
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		if ev.Type == EventTypeBarrier && ev.done != nil {
			close(ev.done)
		}
	}
}

// Sync blocks until every event enqueued before the call has been
// processed.
func (e *Engine) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !e.queue.Enqueue(Event{Type: EventTypeBarrier, done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartFlashing starts the scheduler. Returns false if it was already
// running.
func (e *Engine) StartFlashing() bool {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	if e.queue.Closed() {
		return false
	}

	h, started := e.sched.Start(context.Background(), e.emitFlash)
	if !started {
		return false
	}
	e.flashHandle = h
	e.queue.Enqueue(Event{Type: EventTypeStart, Gen: h.Gen()})
	return true
}

// StopFlashing stops the scheduler and resets the selection. No flash is
// emitted after it returns; ticks already queued are discarded by the loop.
// Returns false if the scheduler was not running.
func (e *Engine) StopFlashing() bool {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	h := e.flashHandle
	if h == nil {
		return false
	}
	e.flashHandle = nil
	h.Stop()
	e.queue.Enqueue(Event{Type: EventTypeStop, Gen: h.Gen()})
	return true
}

// Running reports whether the scheduler is flashing.
func (e *Engine) Running() bool {
	return e.sched.Running()
}

// Tick performs one flash synchronously on the running scheduler, the same
// path its timer drives. Used to simulate ticks. Returns false when
// stopped.
func (e *Engine) Tick() (flash.Event, bool) {
	e.ctlMu.Lock()
	h := e.flashHandle
	e.ctlMu.Unlock()

	if h == nil {
		return flash.Event{}, false
	}
	return h.Tick()
}

// Reset clears the pending selection.
func (e *Engine) Reset() bool {
	return e.queue.Enqueue(Event{Type: EventTypeReset})
}

// Attach subscribes to src and routes threshold crossings into the loop.
// Only one source may be attached at a time.
func (e *Engine) Attach(ctx context.Context, src monitor.Source) (*monitor.Handle, error) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	if e.queue.Closed() {
		return nil, ErrStopped
	}
	if e.monHandle != nil && !e.monHandle.Closed() {
		return nil, ErrAlreadyAttached
	}

	e.attachGen++
	gen := e.attachGen

	h, err := e.mon.Attach(ctx, src,
		func(s monitor.Sample) {
			e.queue.Enqueue(Event{Type: EventTypeTrigger, Gen: gen, Sample: s})
		},
		func(err error) {
			e.queue.Enqueue(Event{Type: EventTypeLost, Gen: gen, Err: err})
		},
	)
	if err != nil {
		return nil, err
	}

	e.monHandle = h
	e.source = src
	e.activeMon.Store(gen)
	slog.Info("probability source attached", "session", e.session.ID, "attach", gen)
	return h, nil
}

// Detach unsubscribes from the probability source. No trigger is processed
// after it returns, including triggers already queued. Returns false if
// nothing was attached.
func (e *Engine) Detach() bool {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	h := e.monHandle
	if h == nil {
		return false
	}
	e.activeMon.Store(0)
	h.Unsubscribe()
	e.monHandle = nil
	e.source = nil
	slog.Info("probability source detached", "session", e.session.ID)
	return true
}

// Offer evaluates one sample on the attached source's handle synchronously.
// Returns whether it crossed the threshold and was queued as a trigger.
func (e *Engine) Offer(s monitor.Sample) bool {
	e.ctlMu.Lock()
	h := e.monHandle
	e.ctlMu.Unlock()

	if h == nil {
		return false
	}
	return h.Offer(s)
}

// Connected reports whether a source is attached and its stream is live.
func (e *Engine) Connected() bool {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	if e.monHandle == nil || e.monHandle.Closed() {
		return false
	}
	return e.source.Connected()
}

// SetThreshold changes the cutoff for subsequent samples.
func (e *Engine) SetThreshold(v float64) {
	e.mon.SetThreshold(v)
	slog.Info("threshold changed", "session", e.session.ID, "threshold", v)
}

// SetInterval changes the flash cadence. A running scheduler is restarted
// on the new cadence; the pending selection is kept.
func (e *Engine) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()

	e.sched.SetInterval(d)
	slog.Info("flash interval changed", "session", e.session.ID, "interval", d)

	if e.flashHandle == nil {
		return
	}
	// Flashes the old handle already queued are still processed; the new
	// handle's start follows them in the queue.
	e.flashHandle.Stop()
	h, _ := e.sched.Start(context.Background(), e.emitFlash)
	e.flashHandle = h
	e.queue.Enqueue(Event{Type: EventTypeStart, Gen: h.Gen()})
}

// emitFlash is the scheduler's Emitter. It runs under the scheduler lock.
func (e *Engine) emitFlash(ev flash.Event) {
	e.queue.Enqueue(Event{Type: EventTypeFlash, Gen: ev.Gen, Flash: ev})
}

// processEvent routes an event to the appropriate handler.
// Called only from the Run goroutine.
func (e *Engine) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeFlash:
		return e.processFlash(ctx, event)
	case EventTypeTrigger:
		return e.processTrigger(ctx, event)
	case EventTypeLost:
		return e.processLost(ctx, event)
	case EventTypeStart:
		slog.Info("flashing started", "session", e.session.ID, "gen", event.Gen)
		return nil
	case EventTypeStop:
		slog.Info("flashing stopped", "session", e.session.ID, "gen", event.Gen)
		if event.Gen > e.stoppedGen {
			e.stoppedGen = event.Gen
		}
		return e.resetSelection(ctx, ResetStop)
	case EventTypeReset:
		return e.resetSelection(ctx, ResetCommand)
	case EventTypeBarrier:
		if event.done != nil {
			close(event.done)
		}
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

func (e *Engine) processFlash(ctx context.Context, event Event) error {
	if event.Gen <= e.stoppedGen {
		slog.Debug("discarding stale flash", "flash", event.Flash.String(), "gen", event.Gen)
		e.publish(func(v *view) { v.counters.StaleEvents++ })
		return nil
	}

	ev := event.Flash
	e.log.Append(ev)
	slog.Debug("flash", "axis", ev.Axis.String(), "index", ev.Index, "seq", ev.Seq)
	e.publish(func(v *view) { v.counters.Flashes++ })

	return e.record(ctx, Entry{Kind: EntryFlash, At: ev.At, Flash: &ev})
}

func (e *Engine) processTrigger(ctx context.Context, event Event) error {
	if event.Gen != e.activeMon.Load() {
		slog.Debug("discarding trigger from detached source", "attach", event.Gen)
		e.publish(func(v *view) { v.counters.StaleEvents++ })
		return nil
	}

	s := event.Sample
	res := e.dec.OnTrigger(e.log, s.At)

	entry := Entry{Kind: EntryTrigger, At: s.At, Probability: s.Value, Outcome: res.Outcome.String()}
	if res.Outcome != decoder.OutcomeNoFlash {
		fl := res.Flash
		entry.Flash = &fl
	}

	switch res.Outcome {
	case decoder.OutcomeNoFlash:
		err := NewEmptyLogError(e.session.ID, s.Value)
		slog.Debug("trigger ignored", "error", err)
		e.publish(func(v *view) {
			v.counters.Triggers++
			v.counters.EmptyTriggers++
		})
		return e.record(ctx, entry)

	case decoder.OutcomeThrottled:
		slog.Debug("trigger throttled", "probability", s.Value)
		e.publish(func(v *view) {
			v.counters.Triggers++
			v.counters.Throttled++
		})
		return e.record(ctx, entry)
	}

	slog.Debug("trigger", "probability", s.Value, "flash", res.Flash.String(), "outcome", res.Outcome.String())
	recErr := e.record(ctx, entry)

	if res.Outcome != decoder.OutcomeDecoded {
		e.publishSelection(func(v *view) { v.counters.Triggers++ })
		return recErr
	}

	dec := res.Decoded
	e.text.Append(dec)
	slog.Info("decoded", "session", e.session.ID, "symbol", dec.Symbol, "row", dec.Row, "col", dec.Col)
	e.publishSelection(func(v *view) {
		v.counters.Triggers++
		v.counters.Decodes++
		v.lastDecoded = &dec
	})

	if err := e.record(ctx, Entry{Kind: EntryDecode, At: s.At, Decoded: &dec}); err != nil && recErr == nil {
		recErr = err
	}
	if e.onDecode != nil {
		e.onDecode(dec)
	}
	return recErr
}

func (e *Engine) processLost(ctx context.Context, event Event) error {
	if event.Gen != e.activeMon.Load() {
		return nil
	}

	e.ctlMu.Lock()
	if e.attachGen == event.Gen {
		e.monHandle = nil
		e.source = nil
		e.activeMon.Store(0)
	}
	e.ctlMu.Unlock()

	fault := NewSubscriptionLostError(e.session.ID, event.Err)
	slog.Warn("subscription lost", "session", e.session.ID, "error", event.Err)
	e.publish(func(v *view) { v.lastFault = fault.Error() })

	err := e.resetSelection(ctx, ResetSubscriptionLost)
	if e.onFault != nil {
		e.onFault(fault)
	}
	return err
}

func (e *Engine) resetSelection(ctx context.Context, reason string) error {
	e.dec.Reset()
	slog.Debug("selection reset", "reason", reason)
	e.publishSelection(func(v *view) { v.counters.Resets++ })
	return e.record(ctx, Entry{Kind: EntryReset, At: e.now(), Reason: reason})
}

// publish applies f to the published view.
func (e *Engine) publish(f func(*view)) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	f(&e.view)
}

// publishSelection applies f and refreshes the decoder-derived fields.
func (e *Engine) publishSelection(f func(*view)) {
	state, pending, text := e.dec.State(), e.dec.Pending(), e.text.String()

	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	f(&e.view)
	e.view.state = state
	e.view.pending = pending
	e.view.text = text
}

// record stamps entry with the next seq and hands it to the recorder.
func (e *Engine) record(ctx context.Context, entry Entry) error {
	if e.recorder == nil {
		return nil
	}
	e.seq.Stamp(&entry)
	// Entries already dequeued are journaled even while the run is
	// being cancelled.
	if err := e.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.publish(func(v *view) { v.counters.RecordErrors++ })
		return fmt.Errorf("record %s seq=%d: %w", entry.Kind, entry.Seq, err)
	}
	return nil
}

// logEventError logs an event processing failure with full context.
func logEventError(event Event, err error) {
	switch event.Type {
	case EventTypeFlash:
		slog.Error("flash processing failed",
			"error", err,
			"flash", event.Flash.String(),
			"gen", event.Gen,
		)
	case EventTypeTrigger:
		slog.Error("trigger processing failed",
			"error", err,
			"probability", event.Sample.Value,
			"at", event.Sample.At,
		)
	default:
		slog.Error("event processing failed",
			"error", err,
			"event_type", event.Type.String(),
		)
	}
}
