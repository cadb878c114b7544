package memory

import (
	"sync"

	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/ports"
)

// Ontology is an in-memory AncestorPropagator over per-edition parent
// links. Editions without their own links fall back to the shared links
// registered under edition 0.
type Ontology struct {
	mu      sync.RWMutex
	parents map[snapshot.EditionID]map[core.Label][]core.Label
}

// NewOntology creates an ontology with no links
func NewOntology() *Ontology {
	return &Ontology{parents: make(map[snapshot.EditionID]map[core.Label][]core.Label)}
}

// SetParents replaces the parent links of one edition. Use edition 0 for
// links shared by every edition.
func (o *Ontology) SetParents(edition snapshot.EditionID, parents map[core.Label][]core.Label) {
	copied := make(map[core.Label][]core.Label, len(parents))
	for child, ps := range parents {
		copied[child] = append([]core.Label(nil), ps...)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.parents[edition] = copied
}

// Propagate implements ports.AncestorPropagator. The result holds the input
// labels and every label reachable through parent links; cycles are
// tolerated.
func (o *Ontology) Propagate(labels core.LabelSet, edition snapshot.EditionID) core.LabelSet {
	o.mu.RLock()
	links, ok := o.parents[edition]
	if !ok {
		links = o.parents[0]
	}
	o.mu.RUnlock()

	out := core.NewSet[core.Label]()
	queue := make([]core.Label, 0, labels.Len())
	for label := range labels {
		out.Add(label)
		queue = append(queue, label)
	}
	for len(queue) > 0 {
		label := queue[0]
		queue = queue[1:]
		for _, parent := range links[label] {
			if out.Has(parent) {
				continue
			}
			out.Add(parent)
			queue = append(queue, parent)
		}
	}
	return out
}

var _ ports.AncestorPropagator = (*Ontology)(nil)
