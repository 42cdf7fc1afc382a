package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/onboarding/internal/model"
)

// Catalog is an immutable, validated set of templates for one partition.
// Entries are kept in ascending flag order.
type Catalog struct {
	partition   model.Partition
	entries     []model.Template
	byFlag      map[string]int
	fingerprint string
}

// New validates templates and builds a Catalog. All problems are collected
// before returning, so the caller sees every broken entry at once.
func New(p model.Partition, templates []model.Template) (*Catalog, error) {
	entries := make([]model.Template, 0, len(templates))
	var problems []Problem
	seenFlag := make(map[string]bool, len(templates))
	seenCode := make(map[string]string, len(templates))

	for _, tpl := range templates {
		tpl.Flag = strings.TrimSpace(tpl.Flag)
		tpl.ShortCode = strings.TrimSpace(tpl.ShortCode)

		if tpl.Flag == "" {
			problems = append(problems, Problem{
				Code:    ErrCodeEmptyFlag,
				Flag:    tpl.Flag,
				Message: fmt.Sprintf("template with short code %q has no flag", tpl.ShortCode),
			})
			continue
		}
		if seenFlag[tpl.Flag] {
			problems = append(problems, Problem{
				Code:    ErrCodeDuplicateFlag,
				Flag:    tpl.Flag,
				Message: "flag defined more than once",
			})
			continue
		}
		seenFlag[tpl.Flag] = true

		if !model.ValidShortCode(tpl.ShortCode) {
			problems = append(problems, Problem{
				Code:    ErrCodeInvalidShortCode,
				Flag:    tpl.Flag,
				Message: fmt.Sprintf("short code %q must match [A-Za-z0-9_]+", tpl.ShortCode),
			})
			continue
		}
		if other, dup := seenCode[tpl.ShortCode]; dup {
			problems = append(problems, Problem{
				Code:    ErrCodeDuplicateShortCode,
				Flag:    tpl.Flag,
				Message: fmt.Sprintf("short code %q already used by %s", tpl.ShortCode, other),
			})
			continue
		}
		seenCode[tpl.ShortCode] = tpl.Flag
		entries = append(entries, tpl)
	}

	if len(problems) > 0 {
		return nil, &IntegrityError{Partition: string(p), Problems: problems}
	}

	slices.SortFunc(entries, func(a, b model.Template) int {
		return strings.Compare(a.Flag, b.Flag)
	})

	c := &Catalog{
		partition: p,
		entries:   entries,
		byFlag:    make(map[string]int, len(entries)),
	}
	fields := make([]any, len(entries))
	for i, e := range entries {
		c.byFlag[e.Flag] = i
		fields[i] = model.TemplateFields(e)
	}
	fp, err := model.Fingerprint(model.DomainCatalog, map[string]any{
		"partition": string(p),
		"entries":   fields,
	})
	if err != nil {
		return nil, err
	}
	c.fingerprint = fp
	return c, nil
}

// MustNew is New for fixed template lists known to be valid.
func MustNew(p model.Partition, templates []model.Template) *Catalog {
	c, err := New(p, templates)
	if err != nil {
		panic(err)
	}
	return c
}

// Partition returns the partition the catalog was built for.
func (c *Catalog) Partition() model.Partition { return c.partition }

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns the templates in ascending flag order. The slice is a copy.
func (c *Catalog) Entries() []model.Template {
	return slices.Clone(c.entries)
}

// Lookup returns the template for flag.
func (c *Catalog) Lookup(flag string) (model.Template, bool) {
	i, ok := c.byFlag[flag]
	if !ok {
		return model.Template{}, false
	}
	return c.entries[i], true
}

// ByShortCode returns the template owning shortCode.
func (c *Catalog) ByShortCode(shortCode string) (model.Template, bool) {
	for _, e := range c.entries {
		if e.ShortCode == shortCode {
			return e, true
		}
	}
	return model.Template{}, false
}

// Map returns the flag to template mapping.
func (c *Catalog) Map() map[string]model.Template {
	m := make(map[string]model.Template, len(c.entries))
	for _, e := range c.entries {
		m[e.Flag] = e
	}
	return m
}

// Fingerprint is a content hash of the partition and every template. Two
// catalogs with the same fingerprint drive identical reconciliation.
func (c *Catalog) Fingerprint() string { return c.fingerprint }
