package enrichment

import (
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/ports"
)

// Population answers how many entities carry a label and how many distinct
// entities exist in total.
type Population interface {
	// Count returns the number of entities carrying label. ok is false when
	// the population has no data for the label.
	Count(label core.Label) (n int, ok bool)
	// Size returns the number of distinct entities.
	Size() int
}

// LabelSource is implemented by populations that can enumerate their labels.
type LabelSource interface {
	Labels() []core.Label
}

// MaterializedPopulation is built once from explicit label membership.
// Counts are precomputed and the value is immutable after construction.
type MaterializedPopulation struct {
	members  map[core.Label]core.EntitySet
	counts   map[core.Label]int
	entities core.EntitySet
	size     int
}

// NewMaterializedPopulation indexes members. Labels with no entities are
// dropped. The map and sets are copied.
func NewMaterializedPopulation(members map[core.Label]core.EntitySet) *MaterializedPopulation {
	p := &MaterializedPopulation{
		members:  make(map[core.Label]core.EntitySet, len(members)),
		counts:   make(map[core.Label]int, len(members)),
		entities: core.NewSet[core.Entity](),
	}
	for label, set := range members {
		if set.Len() == 0 {
			continue
		}
		p.members[label] = set.Clone()
		p.counts[label] = set.Len()
		p.entities.AddAll(set)
	}
	p.size = p.entities.Len()
	return p
}

// WithSize returns a copy whose Size reports n. Sizes smaller than the
// number of distinct members are ignored.
func (p *MaterializedPopulation) WithSize(n int) *MaterializedPopulation {
	cp := *p
	if n > cp.entities.Len() {
		cp.size = n
	}
	return &cp
}

func (p *MaterializedPopulation) Count(label core.Label) (int, bool) {
	n, ok := p.counts[label]
	return n, ok
}

func (p *MaterializedPopulation) Size() int {
	return p.size
}

// Entities returns the members carrying label. The set must not be modified.
func (p *MaterializedPopulation) Entities(label core.Label) core.EntitySet {
	return p.members[label]
}

// Labels returns every label with at least one member, sorted.
func (p *MaterializedPopulation) Labels() []core.Label {
	out := make(core.LabelSet, len(p.counts))
	for label := range p.counts {
		out.Add(label)
	}
	return core.Sorted(out)
}

// AllEntities returns the distinct members. The set must not be modified.
func (p *MaterializedPopulation) AllEntities() core.EntitySet {
	return p.entities
}

// OraclePopulation defers every query to a BackgroundOracle for one
// (species, edition) pair. Membership is never materialized.
type OraclePopulation struct {
	oracle  ports.BackgroundOracle
	species core.SpeciesID
	edition snapshot.EditionID
}

// NewOraclePopulation creates a population view over oracle
func NewOraclePopulation(oracle ports.BackgroundOracle, species core.SpeciesID, edition snapshot.EditionID) *OraclePopulation {
	return &OraclePopulation{oracle: oracle, species: species, edition: edition}
}

func (p *OraclePopulation) Count(label core.Label) (int, bool) {
	return p.oracle.AnnotationCount(p.species, p.edition, label)
}

// Size returns the oracle's entity count, or 0 when unknown.
func (p *OraclePopulation) Size() int {
	n, ok := p.oracle.EntityCount(p.species, p.edition)
	if !ok {
		return 0
	}
	return n
}

// Known reports whether the oracle has a size for this edition.
func (p *OraclePopulation) Known() bool {
	_, ok := p.oracle.EntityCount(p.species, p.edition)
	return ok
}
