package similarity

import (
	"slices"

	"github.com/montanaflynn/stats"

	"gotrack/domain/snapshot"
)

// SeriesSummary describes one similarity series over editions
type SeriesSummary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
}

// DriftSummary holds one SeriesSummary per similarity score
type DriftSummary struct {
	CompleteLabels SeriesSummary `json:"complete_labels"`
	TopLabels      SeriesSummary `json:"top_labels"`
	TopEntities    SeriesSummary `json:"top_entities"`
	TopAncestors   SeriesSummary `json:"top_ancestors"`
}

// Summarize aggregates similarity scores across editions. Nil scores are
// skipped; a series with no values is all zero.
func Summarize(scores map[snapshot.EditionID]SimilarityScore) DriftSummary {
	ids := make([]snapshot.EditionID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var complete, topLabels, topEntities, topAncestors stats.Float64Data
	for _, id := range ids {
		s := scores[id]
		complete = appendScore(complete, s.CompleteLabels)
		topLabels = appendScore(topLabels, s.TopLabels)
		topEntities = appendScore(topEntities, s.TopEntities)
		topAncestors = appendScore(topAncestors, s.TopAncestors)
	}

	return DriftSummary{
		CompleteLabels: summarizeSeries(complete),
		TopLabels:      summarizeSeries(topLabels),
		TopEntities:    summarizeSeries(topEntities),
		TopAncestors:   summarizeSeries(topAncestors),
	}
}

func appendScore(data stats.Float64Data, v *float64) stats.Float64Data {
	if v == nil {
		return data
	}
	return append(data, *v)
}

func summarizeSeries(data stats.Float64Data) SeriesSummary {
	if data.Len() == 0 {
		return SeriesSummary{}
	}
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	lowest, _ := stats.Min(data)
	return SeriesSummary{N: data.Len(), Mean: mean, Median: median, Min: lowest}
}
