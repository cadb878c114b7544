package snapshot

import (
	"fmt"
	"slices"
	"time"
)

// EditionID orders historical snapshots; larger is newer.
type EditionID int

// String returns the string representation
func (id EditionID) String() string {
	return fmt.Sprintf("edition-%d", int(id))
}

// Edition represents one historical state of both the annotation data and
// the background population. Identity and ordering are by ID only.
type Edition struct {
	ID           EditionID `json:"id" yaml:"id"`
	Date         time.Time `json:"date" yaml:"date"`
	OntologyDate time.Time `json:"ontology_date,omitempty" yaml:"ontology_date,omitempty"`
}

// Compare orders editions by ID
func Compare(a, b Edition) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}

// Sort orders editions oldest first, in place
func Sort(editions []Edition) {
	slices.SortFunc(editions, Compare)
}

// SortIDs orders edition IDs oldest first, in place
func SortIDs(ids []EditionID) {
	slices.Sort(ids)
}

// Index maps edition IDs to their metadata
func Index(editions []Edition) map[EditionID]Edition {
	out := make(map[EditionID]Edition, len(editions))
	for _, e := range editions {
		out[e.ID] = e
	}
	return out
}

// Closest returns the edition whose date is nearest to at. Ties go to the
// older edition. ok is false when editions is empty.
func Closest(editions []Edition, at time.Time) (Edition, bool) {
	if len(editions) == 0 {
		return Edition{}, false
	}

	sorted := slices.Clone(editions)
	Sort(sorted)

	best := sorted[0]
	bestDiff := absDuration(best.Date.Sub(at))
	for _, e := range sorted[1:] {
		diff := absDuration(e.Date.Sub(at))
		if diff < bestDiff {
			best, bestDiff = e, diff
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
