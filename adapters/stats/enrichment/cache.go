package enrichment

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"gotrack/adapters/stats/hypergeometric"
	"gotrack/internal/metrics"
)

// ContingencyKey is the shape of one 2x2 table. Two labels with the same key
// have the same tail probability.
type ContingencyKey struct {
	SampleCount     int `json:"sample_count" yaml:"sample_count"`
	PopulationCount int `json:"population_count" yaml:"population_count"`
	SampleSize      int `json:"sample_size" yaml:"sample_size"`
	PopulationSize  int `json:"population_size" yaml:"population_size"`
}

// Validate checks that the table is possible
func (k ContingencyKey) Validate() error {
	return hypergeometric.Validate(k.SampleCount, k.PopulationCount, k.SampleSize, k.PopulationSize)
}

// Expected returns the sample count expected under random draw
func (k ContingencyKey) Expected() float64 {
	return hypergeometric.Expected(k.PopulationCount, k.SampleSize, k.PopulationSize)
}

// FoldEnrichment returns observed over expected, or 0 when nothing is expected
func (k ContingencyKey) FoldEnrichment() float64 {
	exp := k.Expected()
	if exp == 0 {
		return 0
	}
	return float64(k.SampleCount) / exp
}

func (k ContingencyKey) flightKey() string {
	return fmt.Sprintf("%d/%d/%d/%d", k.SampleCount, k.PopulationCount, k.SampleSize, k.PopulationSize)
}

// ProbabilityCache memoizes upper-tail probabilities by contingency key.
// It is safe for concurrent use; concurrent misses on one key compute once.
// Callers choose its lifetime: one per analysis or one per process.
type ProbabilityCache struct {
	values      sync.Map // ContingencyKey -> float64
	group       singleflight.Group
	evaluations atomic.Int64
	hits        atomic.Int64
}

// NewProbabilityCache creates an empty cache
func NewProbabilityCache() *ProbabilityCache {
	return &ProbabilityCache{}
}

// UpperTail returns P(X >= SampleCount) for key. computed is true only for
// the caller that actually ran the calculation. The key must be valid.
func (c *ProbabilityCache) UpperTail(key ContingencyKey) (p float64, computed bool) {
	if v, ok := c.values.Load(key); ok {
		c.recordHit()
		return v.(float64), false
	}

	v, _, _ := c.group.Do(key.flightKey(), func() (interface{}, error) {
		if v, ok := c.values.Load(key); ok {
			return v, nil
		}
		p := hypergeometric.UpperTail(key.SampleCount, key.PopulationCount, key.SampleSize, key.PopulationSize)
		c.values.Store(key, p)
		computed = true
		return p, nil
	})

	if computed {
		c.evaluations.Add(1)
		metrics.ProbabilityEvaluations.Inc()
	} else {
		c.recordHit()
	}
	return v.(float64), computed
}

// Peek returns a cached value without computing
func (c *ProbabilityCache) Peek(key ContingencyKey) (float64, bool) {
	v, ok := c.values.Load(key)
	if !ok {
		return 0, false
	}
	return v.(float64), true
}

// Len returns the number of cached keys
func (c *ProbabilityCache) Len() int {
	n := 0
	c.values.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Evaluations returns how many probabilities this cache has computed
func (c *ProbabilityCache) Evaluations() int64 {
	return c.evaluations.Load()
}

// Hits returns how many lookups were served without computing
func (c *ProbabilityCache) Hits() int64 {
	return c.hits.Load()
}

func (c *ProbabilityCache) recordHit() {
	c.hits.Add(1)
	metrics.ProbabilityCacheHits.Inc()
}
