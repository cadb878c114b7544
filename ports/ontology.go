package ports

import (
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
)

// AncestorPropagator resolves labels to themselves plus their ancestors
// within the ontology version of a specific edition.
type AncestorPropagator interface {
	Propagate(labels core.LabelSet, edition snapshot.EditionID) core.LabelSet
}

// PropagatorFunc adapts a plain function to AncestorPropagator
type PropagatorFunc func(labels core.LabelSet, edition snapshot.EditionID) core.LabelSet

// Propagate calls f(labels, edition)
func (f PropagatorFunc) Propagate(labels core.LabelSet, edition snapshot.EditionID) core.LabelSet {
	return f(labels, edition)
}
