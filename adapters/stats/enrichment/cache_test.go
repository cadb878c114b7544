package enrichment

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"gotrack/adapters/stats/hypergeometric"
)

func TestProbabilityCache_ComputesOnce(t *testing.T) {
	c := NewProbabilityCache()
	key := ContingencyKey{SampleCount: 3, PopulationCount: 20, SampleSize: 10, PopulationSize: 100}

	p, computed := c.UpperTail(key)
	assert.True(t, computed)
	assert.Equal(t, hypergeometric.UpperTail(3, 20, 10, 100), p)

	again, computed := c.UpperTail(key)
	assert.False(t, computed)
	assert.Equal(t, p, again)

	assert.Equal(t, int64(1), c.Evaluations())
	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, 1, c.Len())

	peek, ok := c.Peek(key)
	assert.True(t, ok)
	assert.Equal(t, p, peek)

	_, ok = c.Peek(ContingencyKey{SampleCount: 1, PopulationCount: 1, SampleSize: 1, PopulationSize: 1})
	assert.False(t, ok)
}

func TestProbabilityCache_ConcurrentMisses(t *testing.T) {
	c := NewProbabilityCache()
	keys := []ContingencyKey{
		{SampleCount: 3, PopulationCount: 20, SampleSize: 10, PopulationSize: 100},
		{SampleCount: 5, PopulationCount: 150, SampleSize: 300, PopulationSize: 18000},
		{SampleCount: 1, PopulationCount: 1, SampleSize: 5, PopulationSize: 100},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	computedTotal := 0
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, k := range keys {
				if _, computed := c.UpperTail(k); computed {
					mu.Lock()
					computedTotal++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(keys), computedTotal)
	assert.Equal(t, int64(len(keys)), c.Evaluations())
	assert.Equal(t, len(keys), c.Len())
	assert.Equal(t, int64(32*len(keys)-len(keys)), c.Hits())
}
