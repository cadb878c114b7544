package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	apperrors "gotrack/internal/errors"
)

const sampleYAML = `
species: 9606
ancestors:
  GO:A: ["GO:root"]
  GO:B: ["GO:root"]
propagate_sample: true
editions:
  - id: 1
    date: 2015-01-01T00:00:00Z
    background:
      size: 1000
      counts:
        GO:A: 10
        GO:B: 40
        GO:root: 300
    sample:
      TP53: ["GO:A"]
      BRCA1: ["GO:A", "GO:B"]
  - id: 2
    date: 2015-02-01T00:00:00Z
    sample_size: 10
    background:
      size: 1100
      counts:
        GO:A: 12
    ancestors:
      GO:A: ["GO:other"]
    sample:
      TP53: ["GO:A"]
  - id: 3
    background:
      size: 0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	f, err := Load(writeFile(t, "data.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, core.SpeciesID(9606), f.Species)
	require.Len(t, f.Editions, 3)
	assert.Equal(t, 2015, f.Editions[0].Date.Year())

	in := f.Input()
	assert.Len(t, in.Editions, 3)
	require.Len(t, in.Annotations, 2, "editions without a sample are not analyzed")

	ed1 := in.Annotations[1]
	assert.True(t, ed1["GO:A"].Equal(core.NewSet[core.Entity]("TP53", "BRCA1")))
	assert.True(t, ed1["GO:B"].Equal(core.NewSet[core.Entity]("BRCA1")))
	assert.True(t, ed1["GO:root"].Equal(core.NewSet[core.Entity]("TP53", "BRCA1")))

	// edition 2 has its own links
	assert.Contains(t, in.Annotations[2], core.Label("GO:other"))
	assert.NotContains(t, in.Annotations[2], core.Label("GO:root"))
	assert.Equal(t, map[snapshot.EditionID]int{2: 10}, in.SampleSizes)

	bg := f.Background()
	n, ok := bg.AnnotationCount(9606, 1, "GO:B")
	require.True(t, ok)
	assert.Equal(t, 40, n)
	_, ok = bg.EntityCount(9606, 3)
	assert.False(t, ok, "size 0 is unknown")

	require.NotNil(t, f.Ontology())
}

func TestInput_NoPropagation(t *testing.T) {
	f, err := Load(writeFile(t, "data.yml", sampleYAML))
	require.NoError(t, err)
	f.PropagateSample = false

	in := f.Input()
	assert.NotContains(t, in.Annotations[1], core.Label("GO:root"))
}

func TestSaveLoad_JSON(t *testing.T) {
	f, err := Load(writeFile(t, "data.yaml", sampleYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, f.Save(path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.Species, again.Species)
	assert.Equal(t, f.Editions[0].Background, again.Editions[0].Background)
	assert.Equal(t, f.Editions[1].Sample, again.Editions[1].Sample)
	assert.Equal(t, f.Input().Annotations, again.Input().Annotations)
}

func TestOntology_NoneWithoutLinks(t *testing.T) {
	f := &File{Editions: []EditionData{{Edition: snapshot.Edition{ID: 1}}}}
	assert.Nil(t, f.Ontology())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no editions", "species: 1\n"},
		{"zero id", "editions:\n  - id: 0\n"},
		{"duplicate", "editions:\n  - id: 1\n  - id: 1\n"},
		{"count above size", "editions:\n  - id: 1\n    background: {size: 5, counts: {A: 6}}\n"},
		{"malformed", "editions: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.content))
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
