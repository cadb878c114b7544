package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"gotrack/adapters/memory"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/internal/dataset"
)

// AnnotationGeneratorConfig configures the synthetic annotation generator
type AnnotationGeneratorConfig struct {
	Species            core.SpeciesID `json:"species"`
	EntityCount        int            `json:"entity_count"`
	LabelCount         int            `json:"label_count"`
	EditionCount       int            `json:"edition_count"`
	SampleSize         int            `json:"sample_size"`
	AvgLabelsPerEntity float64        `json:"avg_labels_per_entity"`
	EnrichedLabels     int            `json:"enriched_labels"`
	EnrichmentRate     float64        `json:"enrichment_rate"`
	DriftRate          float64        `json:"drift_rate"`
	StartDate          time.Time      `json:"start_date"`
	Seed               int64          `json:"seed"`
}

// DefaultAnnotationConfig returns sensible defaults for annotation generation
func DefaultAnnotationConfig() AnnotationGeneratorConfig {
	return AnnotationGeneratorConfig{
		Species:            9606,
		EntityCount:        2000,
		LabelCount:         63,
		EditionCount:       6,
		SampleSize:         50,
		AvgLabelsPerEntity: 3,
		EnrichedLabels:     2,
		EnrichmentRate:     0.6,
		DriftRate:          0.05,
		StartDate:          time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:               42,
	}
}

// AnnotationGenerator builds datasets whose labels form a binary tree and
// whose sample over-represents a few leaf labels. Annotations drift a
// little from one edition to the next.
type AnnotationGenerator struct {
	config AnnotationGeneratorConfig
	rng    *rand.Rand
}

// NewAnnotationGenerator creates a new annotation generator
func NewAnnotationGenerator(config AnnotationGeneratorConfig) *AnnotationGenerator {
	return &AnnotationGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Label returns the name of the i-th label. Label 0 is the root.
func Label(i int) core.Label {
	return core.Label(fmt.Sprintf("SYN:%04d", i))
}

// Entity returns the name of the i-th entity
func Entity(i int) core.Entity {
	return core.Entity(fmt.Sprintf("E%05d", i+1))
}

// EnrichedLabels lists the leaf labels the sample over-represents
func (g *AnnotationGenerator) EnrichedLabels() []core.Label {
	out := make([]core.Label, 0, g.config.EnrichedLabels)
	for i := 0; i < g.config.EnrichedLabels && i < g.config.LabelCount-1; i++ {
		out = append(out, Label(g.config.LabelCount-1-i))
	}
	return out
}

// Generate produces a complete dataset. The sample is the first SampleSize
// entities; background counts include ancestors.
func (g *AnnotationGenerator) Generate() *dataset.File {
	cfg := g.config
	f := &dataset.File{
		Species:         cfg.Species,
		Ancestors:       g.ancestors(),
		PropagateSample: true,
	}
	onto := memory.NewOntology()
	onto.SetParents(0, f.Ancestors)

	annotations := g.initialAnnotations()
	for e := 0; e < cfg.EditionCount; e++ {
		if e > 0 {
			g.drift(annotations)
		}
		id := snapshot.EditionID(e + 1)
		f.Editions = append(f.Editions, g.edition(id, annotations, onto))
	}
	return f
}

// ancestors links label i to parent (i-1)/2
func (g *AnnotationGenerator) ancestors() map[core.Label][]core.Label {
	out := make(map[core.Label][]core.Label, g.config.LabelCount)
	for i := 1; i < g.config.LabelCount; i++ {
		out[Label(i)] = []core.Label{Label((i - 1) / 2)}
	}
	return out
}

func (g *AnnotationGenerator) initialAnnotations() [][]int {
	cfg := g.config
	enriched := make([]int, 0, cfg.EnrichedLabels)
	for i := 0; i < cfg.EnrichedLabels && i < cfg.LabelCount-1; i++ {
		enriched = append(enriched, cfg.LabelCount-1-i)
	}

	annotations := make([][]int, cfg.EntityCount)
	for e := range annotations {
		n := int(math.Round(cfg.AvgLabelsPerEntity + g.rng.NormFloat64()*0.5))
		n = max(1, n)
		for i := 0; i < n; i++ {
			annotations[e] = addLabel(annotations[e], g.randomLabel())
		}
		if e < cfg.SampleSize {
			for _, label := range enriched {
				if g.rng.Float64() < cfg.EnrichmentRate {
					annotations[e] = addLabel(annotations[e], label)
				}
			}
		}
	}
	return annotations
}

// drift adds a label to some entities and removes one from others, never
// leaving an entity unannotated
func (g *AnnotationGenerator) drift(annotations [][]int) {
	for e := range annotations {
		if g.rng.Float64() < g.config.DriftRate {
			annotations[e] = addLabel(annotations[e], g.randomLabel())
		}
		if len(annotations[e]) > 1 && g.rng.Float64() < g.config.DriftRate/2 {
			i := g.rng.Intn(len(annotations[e]))
			annotations[e] = slices.Delete(annotations[e], i, i+1)
		}
	}
}

func (g *AnnotationGenerator) edition(id snapshot.EditionID, annotations [][]int, onto *memory.Ontology) dataset.EditionData {
	counts := make(map[core.Label]int)
	size := 0
	sample := make(map[core.Entity][]core.Label, g.config.SampleSize)

	for e, labels := range annotations {
		if len(labels) == 0 {
			continue
		}
		size++

		direct := make([]core.Label, len(labels))
		for i, l := range labels {
			direct[i] = Label(l)
		}
		for label := range onto.Propagate(core.NewSet(direct...), id) {
			counts[label]++
		}
		if e < g.config.SampleSize {
			sample[Entity(e)] = direct
		}
	}

	return dataset.EditionData{
		Edition: snapshot.Edition{
			ID:   id,
			Date: g.config.StartDate.AddDate(0, int(id)-1, 0),
		},
		Background: dataset.BackgroundData{Size: size, Counts: counts},
		Sample:     sample,
	}
}

// randomLabel picks any label but the root
func (g *AnnotationGenerator) randomLabel() int {
	return 1 + g.rng.Intn(g.config.LabelCount-1)
}

func addLabel(labels []int, label int) []int {
	i, found := slices.BinarySearch(labels, label)
	if found {
		return labels
	}
	return slices.Insert(labels, i, label)
}
