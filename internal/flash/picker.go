package flash

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/roach88/speller/internal/grid"
)

// Picker chooses the next axis and index to flash.
// Called by the Scheduler under its lock, so implementations need not be
// safe for concurrent use unless they are shared between schedulers.
type Picker interface {
	Pick(rows, cols int) (grid.Axis, int)
}

// RandomPicker picks Row or Col with probability 0.5 each, then an index
// uniformly in [0, rows) or [0, cols).
type RandomPicker struct {
	rng *rand.Rand
}

// NewRandomPicker returns a picker seeded with seed. A zero seed draws the
// seed from the wall clock.
func NewRandomPicker(seed uint64) *RandomPicker {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomPicker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Pick implements Picker.
func (p *RandomPicker) Pick(rows, cols int) (grid.Axis, int) {
	if p.rng.IntN(2) == 0 {
		return grid.Row, p.rng.IntN(rows)
	}
	return grid.Col, p.rng.IntN(cols)
}

// Choice is one scripted pick.
type Choice struct {
	Axis  grid.Axis
	Index int
}

// ScriptedPicker returns queued choices in order, for tests and scenario
// replays. When the queue is empty it falls back to Row 0.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ScriptedPicker struct {
	mu      sync.Mutex
	choices []Choice
}

// NewScriptedPicker creates a picker that will return choices in order.
func NewScriptedPicker(choices ...Choice) *ScriptedPicker {
	return &ScriptedPicker{choices: append([]Choice(nil), choices...)}
}

// Push queues another choice.
func (p *ScriptedPicker) Push(axis grid.Axis, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.choices = append(p.choices, Choice{Axis: axis, Index: index})
}

// Remaining returns the number of queued choices.
func (p *ScriptedPicker) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.choices)
}

// Pick implements Picker. Scripted indices are clamped into range so a
// script written for a larger grid cannot produce an invalid event.
func (p *ScriptedPicker) Pick(rows, cols int) (grid.Axis, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.choices) == 0 {
		return grid.Row, 0
	}
	c := p.choices[0]
	p.choices = p.choices[1:]

	limit := rows
	if c.Axis == grid.Col {
		limit = cols
	}
	if c.Index >= limit {
		c.Index = limit - 1
	}
	if c.Index < 0 {
		c.Index = 0
	}
	return c.Axis, c.Index
}
