package ports

import (
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
)

// BackgroundOracle answers size questions about the background population of
// a species in one edition without materializing membership.
type BackgroundOracle interface {
	// AnnotationCount returns how many entities carry label. ok is false when
	// the oracle holds no data for the label (the label is "unmapped").
	AnnotationCount(species core.SpeciesID, edition snapshot.EditionID, label core.Label) (count int, ok bool)

	// EntityCount returns the number of distinct annotated entities.
	EntityCount(species core.SpeciesID, edition snapshot.EditionID) (count int, ok bool)
}
