package similarity

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotrack/adapters/stats/temporal"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/ports"
)

type fakeSource struct {
	editions    []snapshot.EditionID
	ranked      map[snapshot.EditionID][]core.Label
	significant map[snapshot.EditionID]core.LabelSet
	entities    map[snapshot.EditionID]map[core.Label]core.EntitySet
}

func (f *fakeSource) Editions() []snapshot.EditionID { return f.editions }

func (f *fakeSource) Has(id snapshot.EditionID) bool {
	_, ok := f.significant[id]
	return ok
}

func (f *fakeSource) Significant(id snapshot.EditionID) core.LabelSet {
	return f.significant[id].Clone()
}

func (f *fakeSource) TopN(id snapshot.EditionID, n int) core.LabelSet {
	top := core.NewSet[core.Label]()
	for i, label := range f.ranked[id] {
		if i < n && f.significant[id].Has(label) {
			top.Add(label)
		}
	}
	return top
}

func (f *fakeSource) Entities(id snapshot.EditionID, label core.Label) core.EntitySet {
	return f.entities[id][label]
}

// Edition 1 and 2 carry {A,B,C} and {B,C,D}; edition 3 has nothing
// significant.
func newFakeSource() *fakeSource {
	return &fakeSource{
		editions: []snapshot.EditionID{1, 2, 3},
		ranked: map[snapshot.EditionID][]core.Label{
			1: {"A", "B", "C"},
			2: {"B", "C", "D"},
			3: {"A"},
		},
		significant: map[snapshot.EditionID]core.LabelSet{
			1: labelSet("A", "B", "C"),
			2: labelSet("B", "C", "D"),
			3: labelSet(),
		},
		entities: map[snapshot.EditionID]map[core.Label]core.EntitySet{
			1: {"A": core.NewSet[core.Entity]("g1"), "B": core.NewSet[core.Entity]("g2"), "C": core.NewSet[core.Entity]("g3")},
			2: {"B": core.NewSet[core.Entity]("g2"), "C": core.NewSet[core.Entity]("g3", "g4"), "D": core.NewSet[core.Entity]("g5")},
			3: {"A": core.NewSet[core.Entity]("g1")},
		},
	}
}

func TestCompare_FixedReference(t *testing.T) {
	scores, err := Compare(newFakeSource(), CompareOptions{TopN: 2, Mode: FixedReference, Reference: 2, Metric: Jaccard})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	s1 := scores[1]
	assert.Equal(t, snapshot.EditionID(2), s1.Reference)
	assert.Equal(t, 0.5, *s1.CompleteLabels)
	assert.InDelta(t, 1.0/3.0, *s1.TopLabels, 1e-15)
	assert.InDelta(t, 0.25, *s1.TopEntities, 1e-15)
	assert.Nil(t, s1.TopAncestors)
	assert.True(t, s1.TopLabelSet.Equal(labelSet("A", "B")))
	assert.True(t, s1.TopEntitySet.Equal(core.NewSet[core.Entity]("g1", "g2")))

	s2 := scores[2]
	assert.Equal(t, 1.0, *s2.CompleteLabels)
	assert.Equal(t, 1.0, *s2.TopLabels)
	assert.Equal(t, 1.0, *s2.TopEntities)

	s3 := scores[3]
	assert.Equal(t, 0.0, *s3.CompleteLabels)
	assert.Equal(t, 0.0, *s3.TopLabels)
	assert.Equal(t, 0.0, *s3.TopEntities)
	assert.Equal(t, 0, s3.TopLabelSet.Len())
}

func TestCompare_Proximal(t *testing.T) {
	scores, err := Compare(newFakeSource(), CompareOptions{TopN: 2, Mode: Proximal, Metric: Jaccard})
	require.NoError(t, err)

	first := scores[1]
	assert.Equal(t, snapshot.EditionID(1), first.Reference)
	assert.Equal(t, 1.0, *first.CompleteLabels)
	assert.Equal(t, 1.0, *first.TopLabels)
	assert.Equal(t, 1.0, *first.TopEntities)

	second := scores[2]
	assert.Equal(t, snapshot.EditionID(1), second.Reference)
	assert.Equal(t, 0.5, *second.CompleteLabels)
	assert.InDelta(t, 1.0/3.0, *second.TopLabels, 1e-15)
	assert.InDelta(t, 0.25, *second.TopEntities, 1e-15)

	third := scores[3]
	assert.Equal(t, snapshot.EditionID(2), third.Reference)
	assert.Equal(t, 0.0, *third.CompleteLabels)
}

func TestCompare_AncestorsResolvedPerEdition(t *testing.T) {
	var mu sync.Mutex
	seen := map[snapshot.EditionID]int{}
	propagator := ports.PropagatorFunc(func(labels core.LabelSet, ed snapshot.EditionID) core.LabelSet {
		mu.Lock()
		seen[ed]++
		mu.Unlock()

		out := labels.Clone()
		if labels.Len() == 0 {
			return out
		}
		out.Add("root")
		if ed == 1 {
			out.Add("obsolete-parent")
		}
		return out
	})

	scores, err := Compare(newFakeSource(), CompareOptions{
		TopN: 2, Mode: FixedReference, Reference: 2, Metric: Jaccard, Propagator: propagator,
	})
	require.NoError(t, err)

	// {A,B,root,obsolete-parent} vs {B,C,root}
	require.NotNil(t, scores[1].TopAncestors)
	assert.InDelta(t, 0.4, *scores[1].TopAncestors, 1e-15)
	assert.True(t, scores[1].TopAncestorSet.Has("obsolete-parent"))
	assert.Equal(t, 1.0, *scores[2].TopAncestors)
	assert.Equal(t, 0.0, *scores[3].TopAncestors)

	assert.Equal(t, map[snapshot.EditionID]int{1: 1, 2: 1, 3: 1}, seen)
}

func TestCompare_Tversky(t *testing.T) {
	scores, err := Compare(newFakeSource(), CompareOptions{TopN: 3, Mode: FixedReference, Reference: 2, Metric: Tversky})
	require.NoError(t, err)

	// tested {A,B,C} against {B,C,D}: one tested-only label
	assert.InDelta(t, 2.0/3.0, *scores[1].CompleteLabels, 1e-15)
}

func TestCompare_InvalidOptions(t *testing.T) {
	src := newFakeSource()

	_, err := Compare(src, CompareOptions{TopN: 0, Mode: Proximal})
	assert.ErrorIs(t, err, core.ErrInvalidTopN)

	_, err = Compare(src, CompareOptions{TopN: 5, Mode: FixedReference})
	assert.ErrorIs(t, err, core.ErrReferenceRequired)

	_, err = Compare(src, CompareOptions{TopN: 5, Mode: FixedReference, Reference: 99})
	assert.ErrorIs(t, err, core.ErrUnknownEdition)
	assert.True(t, core.IsNotFoundError(err))

	_, err = Compare(src, CompareOptions{TopN: 5, Mode: Mode(7)})
	assert.ErrorIs(t, err, core.ErrInvalidMode)

	_, err = Compare(src, CompareOptions{TopN: 5, Mode: Proximal, Metric: Metric(9)})
	assert.ErrorIs(t, err, core.ErrInvalidMetric)
}

var _ Source = (*fakeSource)(nil)

var (
	_ Source          = (*temporal.Analysis)(nil)
	_ StabilitySource = (*temporal.Analysis)(nil)
)

func TestSimilarityScore_JSONIncludesSortedSets(t *testing.T) {
	complete := 0.5
	score := SimilarityScore{
		CompleteLabels: &complete,
		TopLabelSet:    core.NewSet[core.Label]("C", "A", "B"),
		TopEntitySet:   core.NewSet[core.Entity]("g2", "g1"),
		Reference:      2,
	}

	raw, err := json.Marshal(score)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, []any{"A", "B", "C"}, got["top_label_set"])
	assert.Equal(t, []any{"g1", "g2"}, got["top_entity_set"])
	assert.Nil(t, got["top_ancestor_set"])
	assert.Contains(t, got, "top_ancestor_set")
	assert.Equal(t, 0.5, got["complete_labels"])
	assert.Nil(t, got["top_labels"])
	assert.Equal(t, float64(2), got["reference"])

	// map values marshal through the same method
	raw, err = json.Marshal(map[snapshot.EditionID]SimilarityScore{1: score})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"top_label_set":["A","B","C"]`)
}
