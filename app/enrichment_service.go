package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gotrack/adapters/stats/enrichment"
	"gotrack/adapters/stats/similarity"
	"gotrack/adapters/stats/temporal"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	apperrors "gotrack/internal/errors"
	"gotrack/internal/metrics"
	"gotrack/ports"
)

// MaxSampleEntities caps the number of distinct entities in one sample
const MaxSampleEntities = 20000

// EnrichmentService runs temporal enrichment and the analyses built on it
type EnrichmentService struct {
	oracle       ports.BackgroundOracle
	propagator   ports.AncestorPropagator
	orchestrator *temporal.Orchestrator
	log          *logrus.Logger
}

// NewEnrichmentService creates the service. propagator may be nil, in which
// case no ancestor similarity is computed unless a request brings its own.
// Every analysis shares cache.
func NewEnrichmentService(oracle ports.BackgroundOracle, propagator ports.AncestorPropagator, cache *enrichment.ProbabilityCache, log *logrus.Logger) *EnrichmentService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cache == nil {
		cache = enrichment.NewProbabilityCache()
	}
	return &EnrichmentService{
		oracle:       oracle,
		propagator:   propagator,
		orchestrator: temporal.NewOrchestrator(oracle, cache, log),
		log:          log,
	}
}

// Cache returns the probability cache shared by every analysis
func (s *EnrichmentService) Cache() *enrichment.ProbabilityCache {
	return s.orchestrator.Cache()
}

// CombinedRequest defines the inputs of a combined analysis
type CombinedRequest struct {
	Input    temporal.Input
	Analysis temporal.Options
	// Compare.Reference defaults to the newest analyzed edition in
	// FixedReference mode. Compare.Propagator defaults to the service's.
	Compare similarity.CompareOptions
	// Status receives progress updates; nil discards them.
	Status ports.StatusReporter
}

// CombinedAnalysis holds enrichment plus the similarity and stability
// analyses derived from it
type CombinedAnalysis struct {
	RunID      core.RunID                                                      `json:"run_id"`
	SampleHash core.Hash                                                       `json:"sample_hash"`
	Enrichment *temporal.Analysis                                              `json:"-"`
	Similarity map[snapshot.EditionID]similarity.SimilarityScore               `json:"similarity"`
	Stability  map[core.Label]map[snapshot.EditionID]similarity.StabilityScore `json:"-"`
	Summary    similarity.DriftSummary                                         `json:"summary"`
	Compare    similarity.CompareOptions                                       `json:"-"`
	Duration   time.Duration                                                   `json:"duration"`
}

// Combined runs enrichment over every edition, then compares editions and
// scores label stability.
func (s *EnrichmentService) Combined(ctx context.Context, req CombinedRequest) (result *CombinedAnalysis, err error) {
	start := time.Now()
	status := req.Status
	if status == nil {
		status = ports.NopStatus{}
	}

	runID := core.NewRunID()
	log := s.log.WithFields(logrus.Fields{
		"run_id":  runID,
		"species": req.Input.Species,
	})

	defer func() {
		metrics.AnalysisDuration.WithLabelValues("combined").Observe(time.Since(start).Seconds())
		metrics.AnalysesTotal.WithLabelValues("combined", outcomeLabel(err)).Inc()
		if err != nil {
			status.Status("Failed", 100)
			log.WithError(err).Warn("Combined analysis failed")
		}
	}()

	status.Status("Starting Enrichment Analysis", 0)
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, "combined analysis interrupted")
	}

	entities, err := checkSample(req.Input)
	if err != nil {
		return nil, err
	}
	hash := core.ComputeSampleHash(core.Sorted(entities), map[string]interface{}{
		"species":    req.Input.Species,
		"threshold":  req.Analysis.Threshold,
		"min":        req.Analysis.PopulationMin,
		"max":        req.Analysis.PopulationMax,
		"correction": correctionName(req.Analysis.Correction),
	})
	log = log.WithField("sample_hash", hash.Short())
	log.WithField("entities", entities.Len()).Info("Running enrichment analysis")

	analysis, err := s.orchestrator.Analyze(req.Input, req.Analysis)
	if err != nil {
		return nil, apperrors.Wrap(err, "enrichment analysis failed")
	}
	status.Complete()
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, "combined analysis interrupted")
	}

	opts := req.Compare
	if opts.Propagator == nil {
		opts.Propagator = s.propagator
	}
	if opts.Mode == similarity.FixedReference && opts.Reference == 0 {
		if ids := analysis.Editions(); len(ids) > 0 {
			opts.Reference = ids[len(ids)-1]
		}
	}

	log.Info("Running similarity analysis")
	status.Status("Running Similarity Analyses on all editions...", 75)
	scores, err := similarity.Compare(analysis, opts)
	if err != nil {
		return nil, apperrors.Wrap(err, "similarity analysis failed")
	}
	status.Complete()
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, "combined analysis interrupted")
	}

	log.Info("Running stability analysis")
	status.Status("Running Stability Analyses on all editions...", 85)
	stability := similarity.Stability(analysis, s.Cache())
	status.Complete()

	result = &CombinedAnalysis{
		RunID:      runID,
		SampleHash: hash,
		Enrichment: analysis,
		Similarity: scores,
		Stability:  stability,
		Summary:    similarity.Summarize(scores),
		Compare:    opts,
		Duration:   time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"editions":    len(analysis.Editions()),
		"significant": analysis.SignificantInAny().Len(),
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("Analysis Complete")
	status.Status("Analysis Complete", 100)

	return result, nil
}

// SingleEnrichment runs enrichment for one edition of sample against the
// oracle's background. sampleSize overrides the sample size as
// temporal.Input.SampleSizes does; 0 uses the distinct annotated entities.
// A background of unknown size is reported as an unknown edition.
func (s *EnrichmentService) SingleEnrichment(ctx context.Context, edition snapshot.EditionID, sample map[core.Label]core.EntitySet, sampleSize int, species core.SpeciesID, opts enrichment.Options) (out *enrichment.Outcome, err error) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
		metrics.AnalysesTotal.WithLabelValues("single", outcomeLabel(err)).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, "single enrichment interrupted")
	}

	population := enrichment.NewMaterializedPopulation(sample)
	if n := population.AllEntities().Len(); n > MaxSampleEntities {
		return nil, apperrors.Wrap(fmt.Errorf("%w: %d > %d", core.ErrSampleTooLarge, n, MaxSampleEntities), "invalid sample")
	}
	if sampleSize > 0 {
		population = population.WithSize(sampleSize)
	}

	background := enrichment.NewOraclePopulation(s.oracle, species, edition)
	if !background.Known() {
		return nil, apperrors.Wrap(core.NewUnknownEditionError(int(edition)), "background unavailable")
	}

	engine := enrichment.NewEngine(s.Cache(), s.log)
	out, err = engine.Run(population, background, nil, opts)
	if err != nil {
		return out, apperrors.Wrapf(err, "enrichment of edition %d failed", edition)
	}

	s.log.WithFields(logrus.Fields{
		"edition":     edition,
		"species":     species,
		"tested":      out.Tested,
		"significant": out.Significant.Len(),
	}).Info("Single enrichment complete")
	return out, nil
}

// checkSample returns the distinct entities of in, rejecting oversized
// samples
func checkSample(in temporal.Input) (core.EntitySet, error) {
	entities := core.NewSet[core.Entity]()
	for _, members := range in.Annotations {
		for _, set := range members {
			entities.AddAll(set)
		}
	}
	if entities.Len() > MaxSampleEntities {
		return nil, apperrors.Wrap(
			fmt.Errorf("%w: %d > %d", core.ErrSampleTooLarge, entities.Len(), MaxSampleEntities),
			"invalid sample",
		)
	}
	return entities, nil
}

func correctionName(c enrichment.Correction) string {
	if c == nil {
		return ""
	}
	return c.Name()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.GetCode(err) == apperrors.CodeCanceled:
		return "canceled"
	case apperrors.GetCode(err) == apperrors.CodeNoResults:
		return "empty"
	default:
		return "failed"
	}
}
