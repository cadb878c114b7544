package enrichment

import (
	"cmp"
	"slices"

	"gotrack/domain/core"
)

// RawResult is the first phase of a test: a label, its table and its
// uncorrected tail probability.
type RawResult struct {
	Label  core.Label     `json:"label"`
	Key    ContingencyKey `json:"key"`
	PValue float64        `json:"p_value"`
}

// Result is a ranked and corrected test outcome.
//
// PValue holds the corrected value under Bonferroni and the raw value under
// Benjamini-Hochberg. QValue is the BH adjusted p-value for either method.
// Rank is the 0-based position of the first member of the result's tie
// group; FractionalRank is the midpoint of the group.
type Result struct {
	Label core.Label `json:"label"`
	ContingencyKey
	RawPValue      float64 `json:"raw_p_value"`
	PValue         float64 `json:"p_value"`
	QValue         float64 `json:"q_value"`
	Rank           int     `json:"rank"`
	FractionalRank float64 `json:"fractional_rank"`
	Significant    bool    `json:"significant"`
}

// Rank orders raw results by ascending p-value, applies correction and
// assigns tie-aware ranks. Ties are results with identical contingency keys.
// The input is not modified; the output is in rank order together with the
// realized cutoff.
func Rank(raw []RawResult, correction Correction, threshold float64) ([]Result, float64) {
	if len(raw) == 0 {
		return nil, 0
	}

	sorted := slices.Clone(raw)
	slices.SortFunc(sorted, compareRaw)

	ps := make([]float64, len(sorted))
	for i, r := range sorted {
		ps[i] = r.PValue
	}
	v := correction.correct(ps, threshold)
	qs := qValues(ps)

	results := make([]Result, len(sorted))
	rank := 0
	for i, r := range sorted {
		if i > 0 && r.Key != sorted[i-1].Key {
			rank = i
		}
		results[i] = Result{
			Label:          r.Label,
			ContingencyKey: r.Key,
			RawPValue:      r.PValue,
			PValue:         v.adjusted[i],
			QValue:         qs[i],
			Rank:           rank,
			Significant:    v.significant[i],
		}
	}

	for start := 0; start < len(results); {
		end := start + 1
		for end < len(results) && results[end].Rank == results[start].Rank {
			end++
		}
		frac := float64(results[start].Rank) + float64(end-start-1)/2
		for j := start; j < end; j++ {
			results[j].FractionalRank = frac
		}
		start = end
	}

	return results, v.cutoff
}

// compareRaw keeps identical keys adjacent so tie groups are contiguous.
func compareRaw(a, b RawResult) int {
	if c := cmp.Compare(a.PValue, b.PValue); c != 0 {
		return c
	}
	if c := compareKeys(a.Key, b.Key); c != 0 {
		return c
	}
	return cmp.Compare(a.Label, b.Label)
}

func compareKeys(a, b ContingencyKey) int {
	if c := cmp.Compare(b.SampleCount, a.SampleCount); c != 0 {
		return c
	}
	if c := cmp.Compare(a.PopulationCount, b.PopulationCount); c != 0 {
		return c
	}
	if c := cmp.Compare(a.SampleSize, b.SampleSize); c != 0 {
		return c
	}
	return cmp.Compare(a.PopulationSize, b.PopulationSize)
}
