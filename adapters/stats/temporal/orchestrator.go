// Package temporal runs enrichment over an ordered series of editions and
// keeps the per-edition results for re-thresholding and comparison.
package temporal

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"gotrack/adapters/stats/enrichment"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/internal/metrics"
	"gotrack/ports"
)

// Input is the sample's label membership in every edition
type Input struct {
	Species core.SpeciesID
	// Editions carries optional metadata. Analyzed editions are the keys of
	// Annotations.
	Editions    []snapshot.Edition
	Annotations map[snapshot.EditionID]map[core.Label]core.EntitySet
	// SampleSizes overrides the per-edition sample size, which otherwise
	// is the number of distinct annotated entities.
	SampleSizes map[snapshot.EditionID]int
}

// Options control a temporal analysis
type Options struct {
	Correction    enrichment.Correction
	Threshold     float64
	PopulationMin int
	PopulationMax int
	// InitiallySignificantToAll marks every tested label significant until
	// ApplyThreshold is called. When false the correction decides.
	InitiallySignificantToAll bool
	// Parallelism bounds how many editions are analyzed at once.
	Parallelism int
}

// DefaultOptions returns the standard analysis settings
func DefaultOptions() Options {
	return Options{
		Correction:                enrichment.BenjaminiHochberg{},
		Threshold:                 0.05,
		PopulationMin:             5,
		PopulationMax:             200,
		InitiallySignificantToAll: true,
		Parallelism:               1,
	}
}

func (o Options) engineOptions() enrichment.Options {
	return enrichment.Options{
		Correction:    o.Correction,
		Threshold:     o.Threshold,
		PopulationMin: o.PopulationMin,
		PopulationMax: o.PopulationMax,
	}
}

// Orchestrator analyzes editions against a background oracle
type Orchestrator struct {
	oracle ports.BackgroundOracle
	engine *enrichment.Engine
	log    *logrus.Logger
}

// NewOrchestrator creates an orchestrator. Every analysis shares cache; a
// nil cache gives the orchestrator a private one.
func NewOrchestrator(oracle ports.BackgroundOracle, cache *enrichment.ProbabilityCache, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		oracle: oracle,
		engine: enrichment.NewEngine(cache, log),
		log:    log,
	}
}

// Cache returns the shared probability cache
func (o *Orchestrator) Cache() *enrichment.ProbabilityCache {
	return o.engine.Cache()
}

// Analyze runs enrichment independently for every edition of in.
func (o *Orchestrator) Analyze(in Input, opts Options) (*Analysis, error) {
	if err := opts.engineOptions().Validate(); err != nil {
		return nil, err
	}
	if len(in.Annotations) == 0 {
		return nil, fmt.Errorf("%w: no editions", core.ErrEmptySample)
	}

	ids := slices.Collect(maps.Keys(in.Annotations))
	snapshot.SortIDs(ids)

	g := new(errgroup.Group)
	g.SetLimit(max(1, opts.Parallelism))

	editions := make([]*editionResult, len(ids))
	for i, ed := range ids {
		g.Go(func() error {
			r, err := o.analyzeEdition(in, ed, opts)
			if err != nil {
				return fmt.Errorf("edition %d: %w", ed, err)
			}
			editions[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a := newAnalysis(in, ids, editions, opts)

	o.log.WithFields(logrus.Fields{
		"species":     in.Species,
		"editions":    len(ids),
		"labels":      a.stats.Labels,
		"entities":    a.stats.Entities,
		"evaluations": a.stats.Evaluations,
	}).Info("Temporal enrichment complete")

	return a, nil
}

func (o *Orchestrator) analyzeEdition(in Input, ed snapshot.EditionID, opts Options) (*editionResult, error) {
	defer metrics.EditionsAnalyzed.Inc()

	sample := enrichment.NewMaterializedPopulation(in.Annotations[ed])
	if n, ok := in.SampleSizes[ed]; ok {
		sample = sample.WithSize(n)
	}
	r := newEditionResult(sample)
	logger := o.log.WithField("edition", ed)

	background := enrichment.NewOraclePopulation(o.oracle, in.Species, ed)
	if !background.Known() {
		r.unmapped = core.NewSet(sample.Labels()...)
		logger.Warn("No background size for edition; all labels unmapped")
		return r, nil
	}

	out, err := o.engine.Run(sample, background, nil, opts.engineOptions())
	if err != nil && !core.IsDegenerate(err) {
		return nil, err
	}

	r.unmapped = out.Unmapped
	r.rejected = core.Difference(out.Rejected, out.Unmapped)
	r.evaluations = out.Evaluations
	if err != nil {
		logger.WithField("rejected", out.Rejected.Len()).Debug("Nothing testable in edition")
		return r, nil
	}

	r.ordered = out.Ordered()
	r.results = out.Results
	r.verdict = out.Significant
	r.cutoff = out.Cutoff

	logger.WithFields(logrus.Fields{
		"tested":      out.Tested,
		"unmapped":    r.unmapped.Len(),
		"rejected":    r.rejected.Len(),
		"significant": r.verdict.Len(),
	}).Debug("Edition analyzed")

	return r, nil
}

// PivotByEdition turns entity-major membership into the edition-major form
// Input expects. Labels failing filter are skipped; a nil filter keeps all.
func PivotByEdition(data map[core.Entity]map[snapshot.EditionID]core.LabelSet, filter func(core.Label) bool) map[snapshot.EditionID]map[core.Label]core.EntitySet {
	out := make(map[snapshot.EditionID]map[core.Label]core.EntitySet)
	for entity, byEdition := range data {
		for ed, labels := range byEdition {
			for label := range labels {
				if filter != nil && !filter(label) {
					continue
				}
				members, ok := out[ed]
				if !ok {
					members = make(map[core.Label]core.EntitySet)
					out[ed] = members
				}
				set, ok := members[label]
				if !ok {
					set = core.NewSet[core.Entity]()
					members[label] = set
				}
				set.Add(entity)
			}
		}
	}
	return out
}
