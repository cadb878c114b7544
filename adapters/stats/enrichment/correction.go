package enrichment

import (
	"fmt"
	"math"
	"strings"

	"gotrack/domain/core"
)

// Correction is a multiple-testing correction. The set of implementations is
// closed: Bonferroni and BenjaminiHochberg.
type Correction interface {
	Name() string
	// correct receives p-values sorted ascending and returns per-position
	// corrected p-values, significance flags, and the realized cutoff.
	correct(sorted []float64, threshold float64) verdict
}

type verdict struct {
	adjusted    []float64
	significant []bool
	cutoff      float64
}

// Bonferroni controls the family-wise error rate.
type Bonferroni struct{}

// BenjaminiHochberg is the step-up false discovery rate procedure.
type BenjaminiHochberg struct{}

func (Bonferroni) Name() string        { return "bonferroni" }
func (BenjaminiHochberg) Name() string { return "bh" }

func (Bonferroni) String() string        { return "Bonferroni" }
func (BenjaminiHochberg) String() string { return "Benjamini-Hochberg" }

// ParseCorrection selects a correction by name.
func ParseCorrection(s string) (Correction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bonferroni":
		return Bonferroni{}, nil
	case "bh", "benjamini-hochberg", "benjamini_hochberg", "fdr":
		return BenjaminiHochberg{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidCorrection, s)
	}
}

// correct replaces each p-value with min(p*n, 1); significance is the
// corrected value at or below threshold. The cutoff is the threshold itself.
func (Bonferroni) correct(sorted []float64, threshold float64) verdict {
	n := float64(len(sorted))
	v := verdict{
		adjusted:    make([]float64, len(sorted)),
		significant: make([]bool, len(sorted)),
		cutoff:      threshold,
	}
	for i, p := range sorted {
		v.adjusted[i] = math.Min(p*n, 1)
		v.significant[i] = v.adjusted[i] <= threshold
	}
	return v
}

// correct walks p-values once in ascending order. A value above its step
// threshold k*alpha/n waits in a pending pile; the next accepted value
// accepts the whole pile, since the step threshold only grows with k. This
// accepts exactly the ranks up to the largest k with p(k) <= k*alpha/n.
// P-values are left uncorrected.
func (BenjaminiHochberg) correct(sorted []float64, threshold float64) verdict {
	n := float64(len(sorted))
	v := verdict{
		adjusted:    append([]float64(nil), sorted...),
		significant: make([]bool, len(sorted)),
	}
	if len(sorted) > 0 {
		v.cutoff = sorted[0]
	}

	var pending []int
	for i, p := range sorted {
		q := float64(i+1) * threshold / n
		if p > q {
			pending = append(pending, i)
			continue
		}
		v.significant[i] = true
		v.cutoff = p
		for _, j := range pending {
			v.significant[j] = true
		}
		pending = pending[:0]
	}
	return v
}

// qValues returns Benjamini-Hochberg adjusted p-values for ascending input:
// q(i) = min over j >= i of p(j)*n/j, capped at 1.
func qValues(sorted []float64) []float64 {
	n := float64(len(sorted))
	out := make([]float64, len(sorted))
	running := 1.0
	for i := len(sorted) - 1; i >= 0; i-- {
		running = math.Min(running, sorted[i]*n/float64(i+1))
		out[i] = running
	}
	return out
}
