package temporal

import (
	"maps"
	"slices"
	"sync"

	"gotrack/adapters/stats/enrichment"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
)

// Stats summarizes an analysis
type Stats struct {
	Editions    int `json:"editions"`
	Entities    int `json:"entities"`
	Labels      int `json:"labels"`
	Evaluations int `json:"evaluations"`
}

type editionResult struct {
	sample      *enrichment.MaterializedPopulation
	results     map[core.Label]enrichment.Result
	ordered     []enrichment.Result
	unmapped    core.LabelSet
	rejected    core.LabelSet
	verdict     core.LabelSet
	cutoff      float64
	evaluations int
}

func newEditionResult(sample *enrichment.MaterializedPopulation) *editionResult {
	return &editionResult{
		sample:   sample,
		results:  make(map[core.Label]enrichment.Result),
		unmapped: core.NewSet[core.Label](),
		rejected: core.NewSet[core.Label](),
		verdict:  core.NewSet[core.Label](),
	}
}

// Analysis holds per-edition results. Results never change after
// construction; the significant view changes only through ApplyThreshold.
// All methods are safe for concurrent use.
type Analysis struct {
	species  core.SpeciesID
	ids      []snapshot.EditionID
	meta     map[snapshot.EditionID]snapshot.Edition
	editions map[snapshot.EditionID]*editionResult
	opts     Options
	stats    Stats

	mu             sync.RWMutex
	threshold      float64
	significant    map[snapshot.EditionID]core.LabelSet
	significantAny core.LabelSet
}

func newAnalysis(in Input, ids []snapshot.EditionID, results []*editionResult, opts Options) *Analysis {
	a := &Analysis{
		species:     in.Species,
		ids:         ids,
		meta:        snapshot.Index(in.Editions),
		editions:    make(map[snapshot.EditionID]*editionResult, len(ids)),
		opts:        opts,
		threshold:   opts.Threshold,
		significant: make(map[snapshot.EditionID]core.LabelSet, len(ids)),
	}

	entities := core.NewSet[core.Entity]()
	labels := core.NewSet[core.Label]()
	for i, ed := range ids {
		r := results[i]
		a.editions[ed] = r
		entities.AddAll(r.sample.AllEntities())
		labels.AddAll(core.NewSet(r.sample.Labels()...))
		a.stats.Evaluations += r.evaluations

		if opts.InitiallySignificantToAll {
			a.significant[ed] = core.NewSet(slices.Collect(maps.Keys(r.results))...)
		} else {
			a.significant[ed] = r.verdict.Clone()
		}
	}
	a.stats.Editions = len(ids)
	a.stats.Entities = entities.Len()
	a.stats.Labels = labels.Len()
	a.significantAny = unionAll(a.significant)
	return a
}

// Species returns the analyzed species
func (a *Analysis) Species() core.SpeciesID {
	return a.species
}

// Options returns the options the analysis ran with
func (a *Analysis) Options() Options {
	return a.opts
}

// Editions returns analyzed edition IDs, oldest first
func (a *Analysis) Editions() []snapshot.EditionID {
	return slices.Clone(a.ids)
}

// Edition returns metadata for an analyzed edition. Editions without
// supplied metadata carry only their ID.
func (a *Analysis) Edition(id snapshot.EditionID) (snapshot.Edition, bool) {
	if _, ok := a.editions[id]; !ok {
		return snapshot.Edition{}, false
	}
	if e, ok := a.meta[id]; ok {
		return e, true
	}
	return snapshot.Edition{ID: id}, true
}

// Has reports whether id was analyzed
func (a *Analysis) Has(id snapshot.EditionID) bool {
	_, ok := a.editions[id]
	return ok
}

// Results returns every tested label's result in an edition
func (a *Analysis) Results(id snapshot.EditionID) map[core.Label]enrichment.Result {
	r, ok := a.editions[id]
	if !ok {
		return nil
	}
	return maps.Clone(r.results)
}

// Ordered returns an edition's results in rank order
func (a *Analysis) Ordered(id snapshot.EditionID) []enrichment.Result {
	r, ok := a.editions[id]
	if !ok {
		return nil
	}
	return slices.Clone(r.ordered)
}

// Result returns one label's result in one edition
func (a *Analysis) Result(id snapshot.EditionID, label core.Label) (enrichment.Result, bool) {
	r, ok := a.editions[id]
	if !ok {
		return enrichment.Result{}, false
	}
	res, ok := r.results[label]
	return res, ok
}

// ResultsForLabel returns a label's result in every edition where it was tested
func (a *Analysis) ResultsForLabel(label core.Label) map[snapshot.EditionID]enrichment.Result {
	out := make(map[snapshot.EditionID]enrichment.Result)
	for _, id := range a.ids {
		if res, ok := a.editions[id].results[label]; ok {
			out[id] = res
		}
	}
	return out
}

// Unmapped returns labels with no background data in an edition
func (a *Analysis) Unmapped(id snapshot.EditionID) core.LabelSet {
	if r, ok := a.editions[id]; ok {
		return r.unmapped.Clone()
	}
	return nil
}

// Rejected returns labels with background data that were not tested
func (a *Analysis) Rejected(id snapshot.EditionID) core.LabelSet {
	if r, ok := a.editions[id]; ok {
		return r.rejected.Clone()
	}
	return nil
}

// Cutoff returns the correction's realized cutoff in an edition
func (a *Analysis) Cutoff(id snapshot.EditionID) float64 {
	if r, ok := a.editions[id]; ok {
		return r.cutoff
	}
	return 0
}

// Entities returns the sample entities carrying label in an edition
func (a *Analysis) Entities(id snapshot.EditionID, label core.Label) core.EntitySet {
	if r, ok := a.editions[id]; ok {
		return r.sample.Entities(label).Clone()
	}
	return nil
}

// SampleSize returns the sample size used in an edition
func (a *Analysis) SampleSize(id snapshot.EditionID) int {
	if r, ok := a.editions[id]; ok {
		return r.sample.Size()
	}
	return 0
}

// Significant returns the current significant labels of an edition
func (a *Analysis) Significant(id snapshot.EditionID) core.LabelSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.significant[id].Clone()
}

// SignificantInAny returns labels significant in at least one edition
func (a *Analysis) SignificantInAny() core.LabelSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.significantAny.Clone()
}

// TopN returns the current significant labels of an edition whose rank is
// below n, ties included.
func (a *Analysis) TopN(id snapshot.EditionID, n int) core.LabelSet {
	r, ok := a.editions[id]
	if !ok {
		return core.NewSet[core.Label]()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return enrichment.TopN(r.ordered, a.significant[id], n)
}

// Threshold returns the threshold of the current significant view
func (a *Analysis) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.threshold
}

// ApplyThreshold replaces the significant view of every edition with the
// labels whose p-value is at most t. No probability is recomputed. It
// returns false and changes nothing when t is outside [0, 1].
func (a *Analysis) ApplyThreshold(t float64) bool {
	if !(t >= 0 && t <= 1) {
		return false
	}

	next := make(map[snapshot.EditionID]core.LabelSet, len(a.ids))
	for _, id := range a.ids {
		sig := core.NewSet[core.Label]()
		for label, res := range a.editions[id].results {
			if res.PValue <= t {
				sig.Add(label)
			}
		}
		next[id] = sig
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.threshold = t
	a.significant = next
	a.significantAny = unionAll(next)
	return true
}

// Stats returns counts describing the analysis
func (a *Analysis) Stats() Stats {
	return a.stats
}

func unionAll(sets map[snapshot.EditionID]core.LabelSet) core.LabelSet {
	out := core.NewSet[core.Label]()
	for _, s := range sets {
		out.AddAll(s)
	}
	return out
}
