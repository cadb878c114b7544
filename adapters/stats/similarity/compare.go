// Package similarity measures how enrichment results drift between editions
// and how stable individual labels are over time.
package similarity

import (
	"encoding/json"
	"fmt"
	"strings"

	"gotrack/domain/core"
	"gotrack/domain/snapshot"
	"gotrack/ports"
)

// Mode selects what each edition is compared with
type Mode int

const (
	// FixedReference compares every edition with one reference edition.
	FixedReference Mode = iota
	// Proximal compares every edition with the one before it. The first
	// edition is compared with itself.
	Proximal
)

func (m Mode) String() string {
	switch m {
	case FixedReference:
		return "fixed"
	case Proximal:
		return "proximal"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode selects a comparison mode by name
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "fixed_reference", "reference", "current":
		return FixedReference, nil
	case "proximal":
		return Proximal, nil
	default:
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidMode, s)
	}
}

// Source is the view of a temporal analysis needed for comparison
type Source interface {
	Editions() []snapshot.EditionID
	Has(id snapshot.EditionID) bool
	Significant(id snapshot.EditionID) core.LabelSet
	TopN(id snapshot.EditionID, n int) core.LabelSet
	Entities(id snapshot.EditionID, label core.Label) core.EntitySet
}

// CompareOptions control a comparison
type CompareOptions struct {
	TopN int
	Mode Mode
	// Reference is required for FixedReference and must be an analyzed
	// edition. Edition IDs are positive, so 0 means unset.
	Reference snapshot.EditionID
	Metric    Metric
	// Propagator resolves ancestors per edition. When nil no ancestor
	// score is computed.
	Propagator ports.AncestorPropagator
}

// SimilarityScore compares one edition with its reference. Scores are nil
// when they could not be computed. The sets are those of the tested edition.
type SimilarityScore struct {
	CompleteLabels *float64 `json:"complete_labels"`
	TopLabels      *float64 `json:"top_labels"`
	TopEntities    *float64 `json:"top_entities"`
	TopAncestors   *float64 `json:"top_ancestors"`

	TopLabelSet    core.LabelSet      `json:"-"`
	TopEntitySet   core.EntitySet     `json:"-"`
	TopAncestorSet core.LabelSet      `json:"-"`
	Reference      snapshot.EditionID `json:"reference"`
}

// MarshalJSON writes the top sets as sorted arrays. A nil ancestor set is
// written as null.
func (s SimilarityScore) MarshalJSON() ([]byte, error) {
	type plain SimilarityScore
	var ancestors []core.Label
	if s.TopAncestorSet != nil {
		ancestors = core.Sorted(s.TopAncestorSet)
	}
	return json.Marshal(struct {
		plain
		Labels    []core.Label  `json:"top_label_set"`
		Entities  []core.Entity `json:"top_entity_set"`
		Ancestors []core.Label  `json:"top_ancestor_set"`
	}{
		plain:     plain(s),
		Labels:    core.Sorted(s.TopLabelSet),
		Entities:  core.Sorted(s.TopEntitySet),
		Ancestors: ancestors,
	})
}

type editionView struct {
	significant core.LabelSet
	top         core.LabelSet
	entities    core.EntitySet
	ancestors   core.LabelSet
}

func (o CompareOptions) validate(src Source) error {
	if o.TopN < 1 {
		return fmt.Errorf("%w: got %d", core.ErrInvalidTopN, o.TopN)
	}
	switch o.Mode {
	case FixedReference:
		if o.Reference == 0 {
			return core.ErrReferenceRequired
		}
		if !src.Has(o.Reference) {
			return core.NewUnknownEditionError(int(o.Reference))
		}
	case Proximal:
	default:
		return fmt.Errorf("%w: %d", core.ErrInvalidMode, int(o.Mode))
	}
	if o.Metric != Jaccard && o.Metric != Tversky {
		return fmt.Errorf("%w: %d", core.ErrInvalidMetric, int(o.Metric))
	}
	return nil
}

// Compare scores every analyzed edition against its reference.
func Compare(src Source, opts CompareOptions) (map[snapshot.EditionID]SimilarityScore, error) {
	if err := opts.validate(src); err != nil {
		return nil, err
	}

	ids := src.Editions()
	out := make(map[snapshot.EditionID]SimilarityScore, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ref := opts.Reference
	if opts.Mode == Proximal {
		ref = ids[0]
	}
	refView := view(src, ref, opts)

	for _, ed := range ids {
		v := refView
		if ed != ref {
			v = view(src, ed, opts)
		}

		score := SimilarityScore{
			CompleteLabels: ptr(Similarity(opts.Metric, v.significant, refView.significant)),
			TopLabels:      ptr(Similarity(opts.Metric, v.top, refView.top)),
			TopEntities:    ptr(Similarity(opts.Metric, v.entities, refView.entities)),
			TopLabelSet:    v.top,
			TopEntitySet:   v.entities,
			TopAncestorSet: v.ancestors,
			Reference:      ref,
		}
		if opts.Propagator != nil {
			score.TopAncestors = ptr(Similarity(opts.Metric, v.ancestors, refView.ancestors))
		}
		out[ed] = score

		if opts.Mode == Proximal {
			ref, refView = ed, v
		}
	}
	return out, nil
}

func view(src Source, ed snapshot.EditionID, opts CompareOptions) editionView {
	v := editionView{
		significant: src.Significant(ed),
		top:         src.TopN(ed, opts.TopN),
		entities:    core.NewSet[core.Entity](),
	}
	for label := range v.top {
		v.entities.AddAll(src.Entities(ed, label))
	}
	if opts.Propagator != nil {
		v.ancestors = opts.Propagator.Propagate(v.top.Clone(), ed)
	}
	return v
}

func ptr(f float64) *float64 {
	return &f
}
