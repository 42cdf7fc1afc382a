package catalog

import (
	"context"
	"errors"
	"slices"

	"github.com/roach88/onboarding/internal/model"
)

// Set is a file-backed Provider: templates per partition plus an optional
// default list for partitions the source does not name. Every list is
// validated when the Set is built, so a bad source fails at startup rather
// than on the first reconciliation.
type Set struct {
	source     string
	def        []model.Template
	partitions map[model.Partition][]model.Template
}

func newSet(source string, def []model.Template, partitions map[model.Partition][]model.Template) (*Set, error) {
	var errs []error
	if len(def) > 0 {
		if _, err := New("default", def); err != nil {
			errs = append(errs, err)
		}
	}
	names := make([]model.Partition, 0, len(partitions))
	for p := range partitions {
		names = append(names, p)
	}
	slices.Sort(names)
	for _, p := range names {
		if _, err := New(p, partitions[p]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(def) == 0 && len(partitions) == 0 {
		return nil, &IntegrityError{
			Partition: "*",
			Problems: []Problem{{
				Code:    ErrCodeEmptyCatalog,
				Message: source + " defines no templates",
			}},
		}
	}
	return &Set{source: source, def: def, partitions: partitions}, nil
}

// Source names the file or directory the set was read from.
func (s *Set) Source() string { return s.source }

// Partitions lists the partitions named explicitly by the source, sorted.
func (s *Set) Partitions() []model.Partition {
	out := make([]model.Partition, 0, len(s.partitions))
	for p := range s.partitions {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Templates returns the raw templates that apply to p.
func (s *Set) Templates(p model.Partition) []model.Template {
	if tpls, ok := s.partitions[p]; ok {
		return slices.Clone(tpls)
	}
	return slices.Clone(s.def)
}

// Load returns the catalog for p, or ErrEmpty if neither p nor the default
// has templates.
func (s *Set) Load(ctx context.Context, p model.Partition) (*Catalog, error) {
	tpls := s.Templates(p)
	if len(tpls) == 0 {
		return nil, ErrEmpty
	}
	return New(p, tpls)
}
