// Package memory holds map-backed implementations of the analysis ports,
// used by the CLI and tests.
package memory

import (
	"sync"

	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/ports"
)

type backgroundKey struct {
	species core.SpeciesID
	edition snapshot.EditionID
}

type backgroundEdition struct {
	size   int
	counts map[core.Label]int
}

// Background is an in-memory BackgroundOracle
type Background struct {
	mu       sync.RWMutex
	editions map[backgroundKey]*backgroundEdition
}

// NewBackground creates an empty oracle
func NewBackground() *Background {
	return &Background{editions: make(map[backgroundKey]*backgroundEdition)}
}

// Set records the population size and per-label counts of one edition,
// replacing anything recorded before. A size below 1 leaves the size
// unknown.
func (b *Background) Set(species core.SpeciesID, edition snapshot.EditionID, size int, counts map[core.Label]int) {
	copied := make(map[core.Label]int, len(counts))
	for label, n := range counts {
		copied[label] = n
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.editions[backgroundKey{species, edition}] = &backgroundEdition{size: size, counts: copied}
}

// AnnotationCount implements ports.BackgroundOracle
func (b *Background) AnnotationCount(species core.SpeciesID, edition snapshot.EditionID, label core.Label) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ed, ok := b.editions[backgroundKey{species, edition}]
	if !ok {
		return 0, false
	}
	n, ok := ed.counts[label]
	return n, ok
}

// EntityCount implements ports.BackgroundOracle
func (b *Background) EntityCount(species core.SpeciesID, edition snapshot.EditionID) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ed, ok := b.editions[backgroundKey{species, edition}]
	if !ok || ed.size < 1 {
		return 0, false
	}
	return ed.size, true
}

var _ ports.BackgroundOracle = (*Background)(nil)
