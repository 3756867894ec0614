package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Last())
	assert.Equal(t, int64(1), c.Stamp())
	assert.Equal(t, int64(2), c.Stamp())
	assert.Equal(t, int64(2), c.Last(), "Last does not advance")
}

func TestClock_StampsAreUniqueUnderContention(t *testing.T) {
	c := NewClock()
	const workers, stamps = 16, 500

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range stamps {
				seq := c.Stamp()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*stamps)
	assert.Equal(t, int64(workers*stamps), c.Last())
}
