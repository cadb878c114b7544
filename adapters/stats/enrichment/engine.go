// Package enrichment tests labels for over-representation in a sample
// relative to a background population.
package enrichment

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"gotrack/domain/core"
)

// Options control one enrichment run
type Options struct {
	Correction Correction
	Threshold  float64
	// Labels whose background count falls outside [PopulationMin,
	// PopulationMax] are rejected. PopulationMax 0 means unbounded.
	PopulationMin int
	PopulationMax int
}

// DefaultOptions returns BH at 0.05 with no population bounds
func DefaultOptions() Options {
	return Options{
		Correction: BenjaminiHochberg{},
		Threshold:  0.05,
	}
}

// Validate checks options before any work is done
func (o Options) Validate() error {
	if o.Correction == nil {
		return fmt.Errorf("%w: none selected", core.ErrInvalidCorrection)
	}
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return core.NewThresholdError(o.Threshold)
	}
	if o.PopulationMin < 0 || o.PopulationMax < 0 {
		return fmt.Errorf("%w: negative bound", core.ErrInvalidBounds)
	}
	if o.PopulationMax != 0 && o.PopulationMax < o.PopulationMin {
		return fmt.Errorf("%w: max %d below min %d", core.ErrInvalidBounds, o.PopulationMax, o.PopulationMin)
	}
	return nil
}

// Accepts reports whether a background count is within bounds
func (o Options) Accepts(populationCount int) bool {
	if populationCount < o.PopulationMin {
		return false
	}
	return o.PopulationMax == 0 || populationCount <= o.PopulationMax
}

// Outcome is the product of one enrichment run
type Outcome struct {
	Results     map[core.Label]Result
	Significant core.LabelSet
	// Rejected holds every candidate that was not tested. Unmapped is the
	// subset rejected because the background had no count for the label.
	Rejected core.LabelSet
	Unmapped core.LabelSet
	Cutoff   float64
	// Evaluations counts probabilities computed during this run; cache
	// hits are not included.
	Evaluations int
	Tested      int

	ordered []Result
}

func newOutcome() *Outcome {
	return &Outcome{
		Results:     make(map[core.Label]Result),
		Significant: core.NewSet[core.Label](),
		Rejected:    core.NewSet[core.Label](),
		Unmapped:    core.NewSet[core.Label](),
	}
}

// Ordered returns results in rank order
func (o *Outcome) Ordered() []Result {
	return o.ordered
}

// Result looks up one label's result
func (o *Outcome) Result(label core.Label) (Result, bool) {
	r, ok := o.Results[label]
	return r, ok
}

// TopN returns significant labels whose rank is below n. Ties at the
// boundary are all included, so the set may exceed n.
func (o *Outcome) TopN(n int) core.LabelSet {
	return TopN(o.ordered, o.Significant, n)
}

// TopN selects labels from ranked results that are in significant and rank
// below n.
func TopN(ranked []Result, significant core.LabelSet, n int) core.LabelSet {
	top := core.NewSet[core.Label]()
	for _, r := range ranked {
		if r.Rank >= n {
			break
		}
		if significant.Has(r.Label) {
			top.Add(r.Label)
		}
	}
	return top
}

// Engine runs enrichment tests against a shared probability cache
type Engine struct {
	cache *ProbabilityCache
	log   *logrus.Logger
}

// NewEngine creates an engine. A nil cache gets a private one.
func NewEngine(cache *ProbabilityCache, log *logrus.Logger) *Engine {
	if cache == nil {
		cache = NewProbabilityCache()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{cache: cache, log: log}
}

// Cache returns the engine's probability cache
func (e *Engine) Cache() *ProbabilityCache {
	return e.cache
}

// Run tests every candidate label of sample against background. A nil
// candidate set means every label of sample, when sample can list them.
//
// When no label survives filtering the returned error wraps
// core.ErrNoTestableLabels and the Outcome still reports what was rejected.
func (e *Engine) Run(sample, background Population, candidates core.LabelSet, opts Options) (*Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if candidates == nil {
		if src, ok := sample.(LabelSource); ok {
			candidates = core.NewSet(src.Labels()...)
		}
	}

	out := newOutcome()
	sampleSize, populationSize := sample.Size(), background.Size()

	raw := make([]RawResult, 0, candidates.Len())
	for _, label := range core.Sorted(candidates) {
		sampleCount, ok := sample.Count(label)
		if !ok || sampleCount == 0 {
			out.Rejected.Add(label)
			continue
		}
		populationCount, ok := background.Count(label)
		if !ok {
			out.Rejected.Add(label)
			out.Unmapped.Add(label)
			continue
		}
		if !opts.Accepts(populationCount) {
			out.Rejected.Add(label)
			continue
		}

		key := ContingencyKey{
			SampleCount:     sampleCount,
			PopulationCount: populationCount,
			SampleSize:      sampleSize,
			PopulationSize:  populationSize,
		}
		if err := key.Validate(); err != nil {
			e.log.WithFields(logrus.Fields{
				"label": label,
				"error": err,
			}).Warn("Rejecting label with impossible contingency table")
			out.Rejected.Add(label)
			continue
		}

		p, computed := e.cache.UpperTail(key)
		if computed {
			out.Evaluations++
		}
		raw = append(raw, RawResult{Label: label, Key: key, PValue: p})
	}

	out.Tested = len(raw)
	if out.Tested == 0 {
		return out, fmt.Errorf("%w: %d candidates", core.ErrNoTestableLabels, candidates.Len())
	}

	ranked, cutoff := Rank(raw, opts.Correction, opts.Threshold)
	out.ordered = ranked
	out.Cutoff = cutoff
	for _, r := range ranked {
		out.Results[r.Label] = r
		if r.Significant {
			out.Significant.Add(r.Label)
		}
	}

	e.log.WithFields(logrus.Fields{
		"correction":  opts.Correction.Name(),
		"tested":      out.Tested,
		"rejected":    out.Rejected.Len(),
		"significant": out.Significant.Len(),
		"evaluations": out.Evaluations,
	}).Debug("Enrichment run complete")

	return out, nil
}
