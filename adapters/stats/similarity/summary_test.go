package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gotrack/domain/snapshot"
)

func TestSummarize(t *testing.T) {
	scores := map[snapshot.EditionID]SimilarityScore{
		1: {CompleteLabels: ptr(0.5), TopLabels: ptr(0.25), TopEntities: ptr(1)},
		2: {CompleteLabels: ptr(1), TopLabels: ptr(0.75), TopEntities: ptr(1)},
		3: {CompleteLabels: ptr(0), TopLabels: nil, TopEntities: ptr(0.5)},
	}

	got := Summarize(scores)

	assert.Equal(t, 3, got.CompleteLabels.N)
	assert.InDelta(t, 0.5, got.CompleteLabels.Mean, 1e-15)
	assert.Equal(t, 0.5, got.CompleteLabels.Median)
	assert.Equal(t, 0.0, got.CompleteLabels.Min)

	assert.Equal(t, 2, got.TopLabels.N)
	assert.Equal(t, 0.5, got.TopLabels.Median)
	assert.Equal(t, 0.25, got.TopLabels.Min)

	assert.Equal(t, 0.5, got.TopEntities.Min)
	assert.Equal(t, SeriesSummary{}, got.TopAncestors)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, DriftSummary{}, Summarize(nil))
}
