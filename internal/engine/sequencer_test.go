package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencer_StampsInOrder(t *testing.T) {
	var s Sequencer
	assert.Zero(t, s.Recorded())

	flash := Entry{Kind: EntryFlash}
	trigger := Entry{Kind: EntryTrigger}
	assert.Equal(t, int64(1), s.Stamp(&flash))
	assert.Equal(t, int64(2), s.Stamp(&trigger))

	assert.Equal(t, int64(1), flash.Seq)
	assert.Equal(t, int64(2), trigger.Seq)
	assert.Equal(t, int64(2), s.Recorded())
}

func TestSequencer_ConcurrentStampsAreUnique(t *testing.T) {
	var s Sequencer
	const workers, each = 20, 50

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*each)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				var e Entry
				seq := s.Stamp(&e)
				mu.Lock()
				seen[seq] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*each)
	assert.Equal(t, int64(workers*each), s.Recorded())
}
