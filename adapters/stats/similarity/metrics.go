package similarity

import (
	"fmt"
	"strings"

	"gotrack/domain/core"
)

// Metric selects a set-similarity measure
type Metric int

const (
	// Jaccard is |A∩B| / |A∪B|.
	Jaccard Metric = iota
	// Tversky is the prototype-weighted index with the tested set as the
	// prototype: |A∩B| / (|A∩B| + |A\B|).
	Tversky
)

func (m Metric) String() string {
	switch m {
	case Jaccard:
		return "jaccard"
	case Tversky:
		return "tversky"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric selects a metric by name
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jaccard":
		return Jaccard, nil
	case "tversky":
		return Tversky, nil
	default:
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidMetric, s)
	}
}

// Similarity scores tested against reference. Two empty sets score 1 and
// exactly one empty set scores 0, whatever the metric.
func Similarity[T comparable](m Metric, tested, reference core.Set[T]) float64 {
	switch {
	case tested.Len() == 0 && reference.Len() == 0:
		return 1
	case tested.Len() == 0 || reference.Len() == 0:
		return 0
	}
	if m == Tversky {
		return TverskyIndex(tested, reference, 1, 0)
	}
	return JaccardIndex(tested, reference)
}

// JaccardIndex returns |a∩b| / |a∪b|, or 1 when both sets are empty.
func JaccardIndex[T comparable](a, b core.Set[T]) float64 {
	inter := core.IntersectionSize(a, b)
	union := a.Len() + b.Len() - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// TverskyIndex returns |a∩b| / (|a∩b| + alpha|a\b| + beta|b\a|), or 1 when
// the denominator is zero.
func TverskyIndex[T comparable](a, b core.Set[T], alpha, beta float64) float64 {
	inter := core.IntersectionSize(a, b)
	onlyA := a.Len() - inter
	onlyB := b.Len() - inter
	denom := float64(inter) + alpha*float64(onlyA) + beta*float64(onlyB)
	if denom == 0 {
		return 1
	}
	return float64(inter) / denom
}
