// Package hypergeometric computes over-representation probabilities for a
// sample drawn without replacement from a finite population.
//
// All quantities follow the same argument order: r successes observed in a
// sample of size k, drawn from a population of size t that holds m
// successes.
package hypergeometric

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"

	"gotrack/domain/core"
)

// Validate checks that (r, m, k, t) describes a possible contingency table.
func Validate(r, m, k, t int) error {
	if r < 0 || m < 0 || k < 0 || t < 0 || m > t || k > t || r > min(k, m) {
		return core.NewContingencyError(r, m, k, t)
	}
	return nil
}

// Support returns the inclusive range of sample counts with non-zero mass.
func Support(m, k, t int) (lo, hi int) {
	return max(0, k-(t-m)), min(k, m)
}

// LogProbability returns log P(X = r). Values outside the support yield -Inf.
func LogProbability(r, m, k, t int) float64 {
	lo, hi := Support(m, k, t)
	if r < lo || r > hi {
		return math.Inf(-1)
	}
	return logChoose(m, r) - logChoose(t, k) + logChoose(t-m, k-r)
}

// UpperTail returns P(X >= r) for X ~ Hypergeometric(t, m, k).
//
// The mass at r is computed from log binomial coefficients; each further
// term comes from the ratio recurrence
//
//	h(i+1) = h(i) * (k-i)(m-i) / ((i+1)(t-m-k+i+1))
//
// applied in log space, so no factorial is ever formed.
func UpperTail(r, m, k, t int) float64 {
	if m == 0 || k == 0 {
		if r <= 0 {
			return 1
		}
		return 0
	}

	lo, hi := Support(m, k, t)
	if r <= lo {
		return 1
	}
	if r > hi {
		return 0
	}

	logH := LogProbability(r, m, k, t)
	sum := math.Exp(logH)
	for i := r; i < hi; i++ {
		logH += math.Log(float64(k-i)*float64(m-i)) - math.Log(float64(i+1)*float64(t-m-k+i+1))
		sum += math.Exp(logH)
	}
	return math.Min(sum, 1)
}

// Expected returns the mean sample count k*m/t.
func Expected(m, k, t int) float64 {
	if t == 0 {
		return 0
	}
	return float64(k) * float64(m) / float64(t)
}

func logChoose(n, k int) float64 {
	return combin.LogGeneralizedBinomial(float64(n), float64(k))
}
