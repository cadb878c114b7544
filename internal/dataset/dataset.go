// Package dataset reads and writes the file format analyses are run from:
// per-edition sample annotations, background counts and optional ancestor
// links.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gotrack/adapters/memory"
	"gotrack/adapters/stats/temporal"
	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	apperrors "gotrack/internal/errors"
)

// File is one analysis dataset
type File struct {
	Species  core.SpeciesID `yaml:"species" json:"species"`
	Editions []EditionData  `yaml:"editions" json:"editions"`
	// Ancestors holds parent links shared by every edition.
	Ancestors map[core.Label][]core.Label `yaml:"ancestors,omitempty" json:"ancestors,omitempty"`
	// PropagateSample expands sample labels to their ancestors before
	// analysis.
	PropagateSample bool `yaml:"propagate_sample,omitempty" json:"propagate_sample,omitempty"`
}

// EditionData is everything known about one edition
type EditionData struct {
	snapshot.Edition `yaml:",inline"`

	Background BackgroundData `yaml:"background" json:"background"`
	// Sample maps each sample entity to its labels in this edition.
	Sample     map[core.Entity][]core.Label `yaml:"sample" json:"sample"`
	SampleSize int                          `yaml:"sample_size,omitempty" json:"sample_size,omitempty"`
	// Ancestors replaces the shared parent links for this edition.
	Ancestors map[core.Label][]core.Label `yaml:"ancestors,omitempty" json:"ancestors,omitempty"`
}

// BackgroundData is the background population of one edition. Size 0 means
// unknown.
type BackgroundData struct {
	Size   int                `yaml:"size" json:"size"`
	Counts map[core.Label]int `yaml:"counts" json:"counts"`
}

// Load reads a dataset, as JSON when the extension is .json and as YAML
// otherwise
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read dataset %s", path)
	}

	var f File
	if isJSON(path) {
		err = json.Unmarshal(raw, &f)
	} else {
		err = yaml.Unmarshal(raw, &f)
	}
	if err != nil {
		return nil, &apperrors.AppError{
			Code:    apperrors.CodeInvalidInput,
			Message: fmt.Sprintf("failed to parse dataset %s", path),
			Cause:   err,
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save writes the dataset in the format its extension selects
func (f *File) Save(path string) error {
	var (
		raw []byte
		err error
	)
	if isJSON(path) {
		raw, err = json.MarshalIndent(f, "", "  ")
	} else {
		raw, err = yaml.Marshal(f)
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to encode dataset")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return apperrors.Wrapf(err, "failed to write dataset %s", path)
	}
	return nil
}

// Validate checks structural consistency
func (f *File) Validate() error {
	if len(f.Editions) == 0 {
		return apperrors.InvalidInput("dataset has no editions")
	}
	seen := make(map[snapshot.EditionID]bool, len(f.Editions))
	for _, ed := range f.Editions {
		if ed.ID < 1 {
			return apperrors.InvalidInput(fmt.Sprintf("edition id must be positive, got %d", ed.ID))
		}
		if seen[ed.ID] {
			return apperrors.InvalidInput(fmt.Sprintf("duplicate edition %d", ed.ID))
		}
		seen[ed.ID] = true
		if ed.Background.Size < 0 {
			return apperrors.InvalidInput(fmt.Sprintf("edition %d: negative background size", ed.ID))
		}
		for label, n := range ed.Background.Counts {
			if n < 0 || (ed.Background.Size > 0 && n > ed.Background.Size) {
				return apperrors.InvalidInput(fmt.Sprintf("edition %d: count %d for %s outside [0, %d]", ed.ID, n, label, ed.Background.Size))
			}
		}
	}
	return nil
}

// Ontology returns the parent links as a propagator, or nil when the
// dataset carries none
func (f *File) Ontology() *memory.Ontology {
	has := len(f.Ancestors) > 0
	for _, ed := range f.Editions {
		has = has || len(ed.Ancestors) > 0
	}
	if !has {
		return nil
	}

	onto := memory.NewOntology()
	onto.SetParents(0, f.Ancestors)
	for _, ed := range f.Editions {
		if len(ed.Ancestors) > 0 {
			onto.SetParents(ed.ID, ed.Ancestors)
		}
	}
	return onto
}

// Background returns the background populations as an oracle
func (f *File) Background() *memory.Background {
	bg := memory.NewBackground()
	for _, ed := range f.Editions {
		bg.Set(f.Species, ed.ID, ed.Background.Size, ed.Background.Counts)
	}
	return bg
}

// Input returns the sample as temporal analysis input. Editions without
// sample annotations are left out.
func (f *File) Input() temporal.Input {
	var onto *memory.Ontology
	if f.PropagateSample {
		onto = f.Ontology()
	}

	in := temporal.Input{
		Species:     f.Species,
		SampleSizes: make(map[snapshot.EditionID]int),
	}
	byEntity := make(map[core.Entity]map[snapshot.EditionID]core.LabelSet)
	for _, ed := range f.Editions {
		in.Editions = append(in.Editions, ed.Edition)
		for entity, labels := range ed.Sample {
			set := core.NewSet(labels...)
			if onto != nil {
				set = onto.Propagate(set, ed.ID)
			}
			if byEntity[entity] == nil {
				byEntity[entity] = make(map[snapshot.EditionID]core.LabelSet)
			}
			byEntity[entity][ed.ID] = set
		}
		if len(ed.Sample) > 0 && ed.SampleSize > 0 {
			in.SampleSizes[ed.ID] = ed.SampleSize
		}
	}

	in.Annotations = temporal.PivotByEdition(byEntity, nil)
	for _, ed := range f.Editions {
		if len(ed.Sample) > 0 && in.Annotations[ed.ID] == nil {
			in.Annotations[ed.ID] = make(map[core.Label]core.EntitySet)
		}
	}
	return in
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
