package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/grid"
	"github.com/roach88/speller/internal/monitor"
	"github.com/roach88/speller/internal/store"
	"github.com/roach88/speller/internal/testutil"
)

// Epoch is the step clock's start instant for every scenario.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// stepTimeout bounds how long a step may wait on the loop.
const stepTimeout = 5 * time.Second

// Harness drives one scenario through a live engine.
type Harness struct {
	eng    *engine.Engine
	store  *store.Store
	clock  *testutil.StepClock
	picker *flash.ScriptedPicker
	src    *monitor.ChannelSource
	handle *monitor.Handle
	queued bool

	mu      sync.Mutex
	symbols []string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
// Execution flow:
//  1. Build the engine with deterministic helpers and attach a source
//  2. Execute each step, synchronising the loop after it unless the
//     scenario is queued
//  3. Replay the journal and evaluate expect checks
//
// A returned error means the scenario could not be executed; expectation
// failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	done := make(chan error, 1)
	go func() { done <- h.eng.Run(ctx) }()
	defer func() {
		h.eng.Stop()
		<-done
	}()

	if h.handle, err = h.eng.Attach(ctx, h.src); err != nil {
		return nil, fmt.Errorf("attach source: %w", err)
	}
	if err := h.sync(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Do, err)
		}
		result.Trace = append(result.Trace, ev)
	}

	if err := h.finish(ctx, result); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	g := grid.Default()
	if scenario.Grid != nil {
		var err error
		if g, err = grid.New(scenario.Grid); err != nil {
			return nil, fmt.Errorf("grid: %w", err)
		}
	}

	mode := monitor.ModeLevel
	if scenario.Trigger != "" {
		var err error
		if mode, err = monitor.ParseMode(scenario.Trigger); err != nil {
			return nil, err
		}
	}

	stepMS := scenario.StepMS
	if stepMS == 0 {
		stepMS = DefaultStepMS
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		queued:  scenario.Queued,
		store:   st,
		clock:   testutil.NewStepClock(Epoch, time.Duration(stepMS)*time.Millisecond),
		picker:  flash.NewScriptedPicker(),
		src:     monitor.NewChannelSource(0),
		symbols: []string{},
	}

	opts := []engine.Option{
		engine.WithPicker(h.picker),
		engine.WithTicker(flash.NewManualTicker().Func()),
		engine.WithNow(h.clock.Now),
		engine.WithTriggerMode(mode),
		engine.WithMinGap(time.Duration(scenario.MinGapMS) * time.Millisecond),
		engine.WithRecorder(st.Recorder()),
		engine.WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.Name)),
		engine.WithDecodeHandler(h.onDecode),
	}
	if scenario.Threshold != nil {
		opts = append(opts, engine.WithThreshold(*scenario.Threshold))
	}
	if scenario.LogWindow > 0 {
		opts = append(opts, engine.WithLogWindow(scenario.LogWindow))
	}

	if h.eng, err = engine.New(g, opts...); err != nil {
		st.Close()
		return nil, err
	}
	return h, nil
}

func (h *Harness) onDecode(d decoder.Decoded) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.symbols = append(h.symbols, d.Symbol)
}

func (h *Harness) decoded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.symbols...)
}

func (h *Harness) sync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	if err := h.eng.Sync(ctx); err != nil {
		return fmt.Errorf("sync engine: %w", err)
	}
	return nil
}

// execute performs one step and returns its trace event.
func (h *Harness) execute(ctx context.Context, i int, step Step) (TraceEvent, error) {
	before := len(h.decoded())
	ev := TraceEvent{Step: i, Do: step.Do}

	switch step.Do {
	case StepStart:
		ev.OK = h.eng.StartFlashing()

	case StepStop:
		ev.OK = h.eng.StopFlashing()

	case StepReset:
		ev.OK = h.eng.Reset()

	case StepFlash:
		axis, err := grid.ParseAxis(step.Axis)
		if err != nil {
			return ev, err
		}
		// A pick pushed while stopped would leak into the next tick.
		if h.eng.Running() {
			h.picker.Push(axis, step.Index)
			ev.Flash, ev.OK = h.tick()
		}

	case StepTick:
		ev.Flash, ev.OK = h.tick()

	case StepSample:
		v := *step.Value
		ev.Value = &v
		ev.OK = h.eng.Offer(monitor.Sample{Value: v})

	case StepWait:
		h.clock.Advance(time.Duration(step.MS) * time.Millisecond)
		ev.OK = true

	case StepLost:
		if h.handle == nil || h.handle.Closed() {
			break
		}
		h.src.Close(nil)
		select {
		case <-h.handle.Done():
			ev.OK = true
		case <-time.After(stepTimeout):
			return ev, errors.New("source did not report loss")
		}

	case StepAttach:
		handle, err := h.eng.Attach(ctx, h.src)
		if err == nil {
			h.handle = handle
			ev.OK = true
		}

	case StepDetach:
		ev.OK = h.eng.Detach()

	default:
		return ev, fmt.Errorf("unknown step %q", step.Do)
	}

	if h.queued {
		return ev, nil
	}
	if err := h.sync(ctx); err != nil {
		return ev, err
	}

	snap := h.eng.Snapshot()
	ev.State = snap.State
	ev.Text = snap.Text
	if symbols := h.decoded(); len(symbols) > before {
		ev.Decoded = symbols[len(symbols)-1]
	}
	return ev, nil
}

func (h *Harness) tick() (*TraceFlash, bool) {
	fl, ok := h.eng.Tick()
	if !ok {
		return nil, false
	}
	return &TraceFlash{Axis: fl.Axis, Index: fl.Index, Seq: fl.Seq}, true
}

// finish fills the final state and replays the journal.
func (h *Harness) finish(ctx context.Context, result *Result) error {
	if err := h.sync(ctx); err != nil {
		return err
	}
	snap := h.eng.Snapshot()
	result.Final = Final{
		Symbols:   h.decoded(),
		Text:      snap.Text,
		State:     snap.State,
		Running:   snap.Running,
		Connected: snap.Connected,
	}

	sess := h.eng.Session()
	entries, err := h.store.ReplaySession(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	replay, err := engine.Replay(h.eng.Grid(), entries, sess.ReplayOptions())
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	result.Final.ReplayMatch = replay.Match
	if !replay.Match {
		result.AddError(fmt.Sprintf("journal replay diverged: recorded %q, replayed %q",
			decoder.Text(replay.Recorded), replay.Text))
	}
	if counters := snap.Counters; counters.RecordErrors > 0 {
		result.AddError(fmt.Sprintf("%d journal writes failed", counters.RecordErrors))
	}
	return nil
}
