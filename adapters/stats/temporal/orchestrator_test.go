package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gotrack/adapters/stats/enrichment"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/internal"
)

const human = core.SpeciesID(9606)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) AnnotationCount(species core.SpeciesID, edition snapshot.EditionID, label core.Label) (int, bool) {
	args := m.Called(species, edition, label)
	return args.Int(0), args.Bool(1)
}

func (m *mockOracle) EntityCount(species core.SpeciesID, edition snapshot.EditionID) (int, bool) {
	args := m.Called(species, edition)
	return args.Int(0), args.Bool(1)
}

func (m *mockOracle) edition(ed snapshot.EditionID, size int, counts map[core.Label]int) {
	m.On("EntityCount", human, ed).Return(size, true)
	for label, n := range counts {
		m.On("AnnotationCount", human, ed, label).Return(n, true)
	}
	m.On("AnnotationCount", human, ed, mock.Anything).Return(0, false).Maybe()
}

func (m *mockOracle) unknownEdition(ed snapshot.EditionID) {
	m.On("EntityCount", human, ed).Return(0, false)
}

func set[T comparable](vs ...T) core.Set[T] {
	return core.NewSet(vs...)
}

// Three editions: D has no background data in edition 1, C is too common
// everywhere, and edition 3 has no background size at all.
func newScenario() (*mockOracle, Input) {
	oracle := new(mockOracle)
	oracle.edition(1, 1000, map[core.Label]int{"A": 10, "B": 20, "C": 300})
	oracle.edition(2, 1000, map[core.Label]int{"A": 10, "B": 20, "C": 300, "D": 15})
	oracle.unknownEdition(3)

	in := Input{
		Species: human,
		Editions: []snapshot.Edition{
			{ID: 1}, {ID: 2}, {ID: 3},
		},
		Annotations: map[snapshot.EditionID]map[core.Label]core.EntitySet{
			1: {
				"A": set[core.Entity]("g1", "g2", "g3"),
				"B": set[core.Entity]("g1", "g4"),
				"C": set[core.Entity]("g5"),
				"D": set[core.Entity]("g2"),
			},
			2: {
				"A": set[core.Entity]("g1", "g2", "g3"),
				"B": set[core.Entity]("g1", "g4"),
				"C": set[core.Entity]("g5"),
				"D": set[core.Entity]("g2", "g6"),
			},
			3: {
				"A": set[core.Entity]("g1"),
			},
		},
	}
	return oracle, in
}

func newTestOrchestrator(oracle *mockOracle) *Orchestrator {
	return NewOrchestrator(oracle, enrichment.NewProbabilityCache(), internal.NewDiscardLogger())
}

func TestAnalyze_UnmappedAndRejectedStayApart(t *testing.T) {
	oracle, in := newScenario()
	a, err := newTestOrchestrator(oracle).Analyze(in, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []snapshot.EditionID{1, 2, 3}, a.Editions())

	assert.True(t, a.Unmapped(1).Equal(set[core.Label]("D")))
	assert.True(t, a.Rejected(1).Equal(set[core.Label]("C")))
	assert.Len(t, a.Results(1), 2)

	assert.Equal(t, 0, a.Unmapped(2).Len())
	assert.True(t, a.Rejected(2).Equal(set[core.Label]("C")))
	assert.Len(t, a.Results(2), 3)

	assert.True(t, a.Unmapped(3).Equal(set[core.Label]("A")))
	assert.Empty(t, a.Results(3))
	assert.Equal(t, 0, a.Rejected(3).Len())

	oracle.AssertExpectations(t)
}

func TestAnalyze_InitiallyAllSignificant(t *testing.T) {
	oracle, in := newScenario()
	a, err := newTestOrchestrator(oracle).Analyze(in, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, a.Significant(1).Equal(set[core.Label]("A", "B")))
	assert.True(t, a.Significant(2).Equal(set[core.Label]("A", "B", "D")))
	assert.Equal(t, 0, a.Significant(3).Len())
	assert.True(t, a.SignificantInAny().Equal(set[core.Label]("A", "B", "D")))
	assert.Equal(t, 0.05, a.Threshold())
}

func TestAnalyze_CorrectionVerdict(t *testing.T) {
	oracle, in := newScenario()
	opts := DefaultOptions()
	opts.InitiallySignificantToAll = false
	opts.Threshold = 0.001

	a, err := newTestOrchestrator(oracle).Analyze(in, opts)
	require.NoError(t, err)

	assert.True(t, a.Significant(1).Equal(set[core.Label]("A")))
	assert.True(t, a.Significant(2).Equal(set[core.Label]("A")))
}

func TestApplyThreshold(t *testing.T) {
	oracle, in := newScenario()
	a, err := newTestOrchestrator(oracle).Analyze(in, DefaultOptions())
	require.NoError(t, err)

	before := a.Results(2)

	assert.False(t, a.ApplyThreshold(1.5))
	assert.False(t, a.ApplyThreshold(-0.01))
	assert.True(t, a.Significant(2).Equal(set[core.Label]("A", "B", "D")))
	assert.Equal(t, 0.05, a.Threshold())

	require.True(t, a.ApplyThreshold(0.001))
	first := a.Significant(2)
	firstAny := a.SignificantInAny()
	require.True(t, a.ApplyThreshold(0.001))

	assert.True(t, first.Equal(a.Significant(2)))
	assert.True(t, firstAny.Equal(a.SignificantInAny()))
	assert.True(t, first.Equal(set[core.Label]("A")))
	assert.Equal(t, 0.001, a.Threshold())
	assert.Equal(t, before, a.Results(2))

	require.True(t, a.ApplyThreshold(1))
	assert.True(t, a.SignificantInAny().Equal(set[core.Label]("A", "B", "D")))
}

func TestAnalysis_Lookups(t *testing.T) {
	oracle, in := newScenario()
	a, err := newTestOrchestrator(oracle).Analyze(in, DefaultOptions())
	require.NoError(t, err)

	byEdition := a.ResultsForLabel("D")
	require.Len(t, byEdition, 1)
	assert.Equal(t, 2, byEdition[2].SampleCount)
	assert.Equal(t, 6, byEdition[2].SampleSize)

	res, ok := a.Result(1, "A")
	require.True(t, ok)
	assert.Equal(t, 3, res.SampleCount)
	assert.Equal(t, 5, res.SampleSize)
	assert.Equal(t, 1000, res.PopulationSize)

	_, ok = a.Result(1, "C")
	assert.False(t, ok)

	assert.True(t, a.Entities(1, "A").Equal(set[core.Entity]("g1", "g2", "g3")))
	assert.True(t, a.TopN(1, 1).Equal(set[core.Label]("A")))
	assert.True(t, a.TopN(2, 5).Equal(set[core.Label]("A", "B", "D")))

	ed, ok := a.Edition(2)
	assert.True(t, ok)
	assert.Equal(t, snapshot.EditionID(2), ed.ID)
	_, ok = a.Edition(99)
	assert.False(t, ok)

	assert.Equal(t, Stats{Editions: 3, Entities: 6, Labels: 4, Evaluations: 5}, a.Stats())
}

func TestAnalyze_SharedCacheAndParallelism(t *testing.T) {
	oracle, in := newScenario()
	o := newTestOrchestrator(oracle)

	serial, err := o.Analyze(in, DefaultOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Parallelism = 3
	parallel, err := o.Analyze(in, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, parallel.Stats().Evaluations)
	for _, ed := range serial.Editions() {
		assert.Equal(t, serial.Results(ed), parallel.Results(ed), "edition %d", ed)
	}
}

func TestAnalyze_SampleSizeOverride(t *testing.T) {
	oracle, in := newScenario()
	in.SampleSizes = map[snapshot.EditionID]int{1: 50}

	a, err := newTestOrchestrator(oracle).Analyze(in, DefaultOptions())
	require.NoError(t, err)

	res, ok := a.Result(1, "A")
	require.True(t, ok)
	assert.Equal(t, 50, res.SampleSize)
	assert.Equal(t, 50, a.SampleSize(1))
}

func TestAnalyze_NothingTestableIsNotAnError(t *testing.T) {
	oracle, in := newScenario()
	opts := DefaultOptions()
	opts.PopulationMin = 500
	opts.PopulationMax = 0

	a, err := newTestOrchestrator(oracle).Analyze(in, opts)
	require.NoError(t, err)

	assert.Empty(t, a.Results(1))
	assert.True(t, a.Rejected(1).Equal(set[core.Label]("A", "B", "C")))
	assert.True(t, a.Unmapped(1).Equal(set[core.Label]("D")))
	assert.Equal(t, 0, a.SignificantInAny().Len())
}

func TestAnalyze_InvalidInput(t *testing.T) {
	oracle, in := newScenario()
	o := newTestOrchestrator(oracle)

	opts := DefaultOptions()
	opts.Threshold = 2
	_, err := o.Analyze(in, opts)
	assert.ErrorIs(t, err, core.ErrInvalidThreshold)

	opts = DefaultOptions()
	opts.Correction = nil
	_, err = o.Analyze(in, opts)
	assert.ErrorIs(t, err, core.ErrInvalidCorrection)

	_, err = o.Analyze(Input{Species: human}, DefaultOptions())
	assert.ErrorIs(t, err, core.ErrEmptySample)
}

func TestAnalysis_ConcurrentReadersAndThresholds(t *testing.T) {
	oracle, in := newScenario()
	a, err := newTestOrchestrator(oracle).Analyze(in, DefaultOptions())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			a.ApplyThreshold(float64(i%10) / 10)
		}
	}()
	for i := 0; i < 200; i++ {
		_ = a.Significant(2)
		_ = a.SignificantInAny()
		_ = a.TopN(1, 3)
	}
	<-done

	require.True(t, a.ApplyThreshold(0.05))
	assert.True(t, a.Significant(2).Equal(set[core.Label]("A", "B", "D")))
}

func TestPivotByEdition(t *testing.T) {
	data := map[core.Entity]map[snapshot.EditionID]core.LabelSet{
		"g1": {1: set[core.Label]("A", "B"), 2: set[core.Label]("A")},
		"g2": {1: set[core.Label]("A", "obsolete")},
	}

	out := PivotByEdition(data, func(l core.Label) bool { return l != "obsolete" })

	require.Len(t, out, 2)
	assert.True(t, out[1]["A"].Equal(set[core.Entity]("g1", "g2")))
	assert.True(t, out[1]["B"].Equal(set[core.Entity]("g1")))
	assert.NotContains(t, out[1], core.Label("obsolete"))
	assert.True(t, out[2]["A"].Equal(set[core.Entity]("g1")))

	all := PivotByEdition(data, nil)
	assert.Contains(t, all[1], core.Label("obsolete"))
}
