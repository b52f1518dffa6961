package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/grid"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStepClock_Steps(t *testing.T) {
	c := NewStepClock(t0, 10*time.Millisecond)

	assert.Equal(t, t0, c.Peek())
	assert.Equal(t, t0, c.Now())
	assert.Equal(t, t0.Add(10*time.Millisecond), c.Now())
	assert.Equal(t, t0.Add(20*time.Millisecond), c.Peek())
	assert.Equal(t, 20*time.Millisecond, c.Elapsed())
}

func TestStepClock_AdvanceAndReset(t *testing.T) {
	c := NewStepClock(t0, 0)

	assert.Equal(t, t0, c.Now())
	assert.Equal(t, t0, c.Now(), "zero step freezes")

	c.Advance(time.Second)
	assert.Equal(t, t0.Add(time.Second), c.Now())

	c.Reset()
	assert.Equal(t, t0, c.Now())
	assert.Zero(t, c.Elapsed())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	c := NewStepClock(t0, time.Millisecond)
	const goroutines = 50
	const reads = 100

	seen := make(chan time.Time, goroutines*reads)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < reads; j++ {
				seen <- c.Now()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]struct{}, goroutines*reads)
	for ts := range seen {
		unique[ts] = struct{}{}
	}
	assert.Len(t, unique, goroutines*reads, "every reading is distinct")
	assert.Equal(t, time.Duration(goroutines*reads)*time.Millisecond, c.Elapsed())
}

func TestFixedSessionGenerator(t *testing.T) {
	var gen engine.SessionIDGenerator = NewFixedSessionGenerator("scenario-a")
	for i := 0; i < 3; i++ {
		assert.Equal(t, "scenario-a", gen.Generate())
	}
	assert.Equal(t, "test-session", NewFixedSessionGenerator("").Generate())
}

func TestStepClock_DrivesEngine(t *testing.T) {
	c := NewStepClock(t0, time.Second)
	e, err := engine.New(grid.Default(),
		engine.WithNow(c.Now),
		engine.WithSessionGenerator(NewFixedSessionGenerator("")),
	)
	require.NoError(t, err)
	assert.Equal(t, t0, e.Session().StartedAt)
	assert.Equal(t, "test-session", e.Session().ID)
}
