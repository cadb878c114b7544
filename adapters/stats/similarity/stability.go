package similarity

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"gotrack/adapters/stats/enrichment"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
)

// stabilityWindow is how many recent edition-to-edition changes feed the
// spread estimate. Older changes weigh less: weights run 1..stabilityWindow.
const stabilityWindow = 6

// StabilityScore describes how sensitive a label's p-value is to the
// recent drift of its counts.
//
// On a label's first appearance the sigmas are -1, both bounds equal the
// raw p-value and the scores are NaN.
type StabilityScore struct {
	SampleSigma     float64 `json:"sample_sigma"`
	PopulationSigma float64 `json:"population_sigma"`
	MinPValue       float64 `json:"min_p_value"`
	MaxPValue       float64 `json:"max_p_value"`
	// Score is ln((MaxPValue - MinPValue) / raw p-value).
	Score float64 `json:"score"`
	// AverageScore is ln of the running mean of exp(Score).
	AverageScore float64 `json:"average_score"`
}

// StabilitySource is the view of a temporal analysis needed for stability
type StabilitySource interface {
	Editions() []snapshot.EditionID
	SignificantInAny() core.LabelSet
	ResultsForLabel(label core.Label) map[snapshot.EditionID]enrichment.Result
}

// Stability scores every label significant in any edition. For each
// edition after a label's first, the change in its sample and background
// counts is pushed into a weighted window; the counts are then perturbed by
// the weighted mean change plus or minus two standard deviations, and the
// most and least favourable tables bound the p-value. Probabilities go
// through cache.
func Stability(src StabilitySource, cache *enrichment.ProbabilityCache) map[core.Label]map[snapshot.EditionID]StabilityScore {
	if cache == nil {
		cache = enrichment.NewProbabilityCache()
	}

	ids := src.Editions()
	out := make(map[core.Label]map[snapshot.EditionID]StabilityScore)
	for _, label := range core.Sorted(src.SignificantInAny()) {
		out[label] = labelStability(ids, src.ResultsForLabel(label), cache)
	}
	return out
}

func labelStability(ids []snapshot.EditionID, data map[snapshot.EditionID]enrichment.Result, cache *enrichment.ProbabilityCache) map[snapshot.EditionID]StabilityScore {
	scores := make(map[snapshot.EditionID]StabilityScore, len(data))

	var (
		window        [][2]float64
		previous      *enrichment.Result
		runningScore  float64
		runningScoreN int
	)
	for _, ed := range ids {
		res, ok := data[ed]
		if !ok {
			continue
		}
		if previous == nil {
			scores[ed] = StabilityScore{
				SampleSigma:     -1,
				PopulationSigma: -1,
				MinPValue:       res.RawPValue,
				MaxPValue:       res.RawPValue,
				Score:           math.NaN(),
				AverageScore:    math.NaN(),
			}
			previous = &res
			continue
		}

		window = append(window, [2]float64{
			float64(res.SampleCount - previous.SampleCount),
			float64(res.PopulationCount - previous.PopulationCount),
		})
		if len(window) > stabilityWindow {
			window = window[1:]
		}

		sampleMean, sampleSigma := weightedSpread(window, 0)
		popMean, popSigma := weightedSpread(window, 1)

		rMin := round(float64(res.SampleCount) + sampleMean - 2*sampleSigma)
		rMax := round(float64(res.SampleCount) + sampleMean + 2*sampleSigma)
		mMin := round(float64(res.PopulationCount) + popMean - 2*popSigma)
		mMax := round(float64(res.PopulationCount) + popMean + 2*popSigma)

		// most hits in the sample against fewest in the background gives
		// the smallest p-value, and the reverse the largest
		minP, _ := cache.UpperTail(clampTable(rMax, mMin, res.SampleSize, res.PopulationSize))
		maxP, _ := cache.UpperTail(clampTable(rMin, mMax, res.SampleSize, res.PopulationSize))

		score := (maxP - minP) / res.RawPValue
		runningScore += score
		runningScoreN++

		scores[ed] = StabilityScore{
			SampleSigma:     sampleSigma,
			PopulationSigma: popSigma,
			MinPValue:       minP,
			MaxPValue:       maxP,
			Score:           math.Log(score),
			AverageScore:    math.Log(runningScore / float64(runningScoreN)),
		}
		previous = &res
	}
	return scores
}

// weightedSpread returns the weighted mean and standard deviation of one
// column of window, weighting entries 1..len(window) from oldest to newest.
// The variance gets the n/(n-1) small-sample correction; a single entry
// has zero spread.
func weightedSpread(window [][2]float64, col int) (mean, sigma float64) {
	x := make([]float64, len(window))
	w := make([]float64, len(window))
	for i, v := range window {
		x[i] = v[col]
		w[i] = float64(i + 1)
	}
	if len(x) == 1 {
		return x[0], 0
	}

	mean, variance := stat.PopMeanVariance(x, w)
	n := float64(len(x))
	return mean, math.Sqrt(variance * n / (n - 1))
}

// clampTable moves perturbed counts back into a physically possible table
// for sample size k and population size t.
func clampTable(r, m, k, t int) enrichment.ContingencyKey {
	m = min(max(m, 0), t)
	r = min(r, k)
	if r > m {
		m = r
	}
	if lo := k - (t - m); r < lo {
		r = lo
	}
	r = max(r, 0)
	return enrichment.ContingencyKey{SampleCount: r, PopulationCount: m, SampleSize: k, PopulationSize: t}
}

func round(f float64) int {
	return int(math.Floor(f + 0.5))
}
