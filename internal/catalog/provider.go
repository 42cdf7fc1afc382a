package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/onboarding/internal/model"
)

// Provider loads the catalog for a partition.
type Provider interface {
	Load(ctx context.Context, p model.Partition) (*Catalog, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, p model.Partition) (*Catalog, error)

func (f ProviderFunc) Load(ctx context.Context, p model.Partition) (*Catalog, error) {
	return f(ctx, p)
}

// Static serves one fixed template list for every partition.
type Static struct {
	Templates []model.Template
}

// Load builds a catalog from the fixed templates. An empty list yields ErrEmpty.
func (s Static) Load(ctx context.Context, p model.Partition) (*Catalog, error) {
	if len(s.Templates) == 0 {
		return nil, ErrEmpty
	}
	return New(p, s.Templates)
}

// Fallback loads from Primary and switches to Default when Primary has no
// templates for the partition. Integrity and I/O errors from Primary are
// returned as-is.
type Fallback struct {
	Primary Provider
	Default Provider
	Logger  *slog.Logger
}

func (f Fallback) Load(ctx context.Context, p model.Partition) (*Catalog, error) {
	c, err := f.Primary.Load(ctx, p)
	switch {
	case err == nil && c.Len() > 0:
		return c, nil
	case err != nil && !errors.Is(err, ErrEmpty):
		return nil, err
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("catalog empty, using fallback", "partition", p)
	return f.Default.Load(ctx, p)
}

// DefaultTemplates is the built-in catalog for the standard onboarding form.
func DefaultTemplates() []model.Template {
	return []model.Template{
		{
			Flag:         model.FlagEmployeeID,
			ShortCode:    "1",
			Kind:         "Employee ID",
			NamePrefix:   "Create employee ID for",
			AssignedTo:   "HR",
			Description:  "Create employee ID badge",
			EmailSubject: "Employee ID requested",
		},
		{
			Flag:         model.FlagPurchasingCard,
			ShortCode:    "2",
			Kind:         "Purchasing Card",
			NamePrefix:   "Issue purchasing card for",
			AssignedTo:   "Finance",
			Description:  "Issue purchasing card",
			EmailSubject: "Purchasing card requested",
		},
		{
			Flag:         model.FlagGasCard,
			ShortCode:    "3",
			Kind:         "Gas Card",
			NamePrefix:   "Issue gas card for",
			AssignedTo:   "Fleet",
			Description:  "Issue fuel card",
			EmailSubject: "Gas card requested",
		},
		{
			Flag:         model.FlagEmailAddress,
			ShortCode:    "4",
			Kind:         "Email Account",
			NamePrefix:   "Create email account for",
			AssignedTo:   "IT",
			Description:  "Provision mailbox and directory account",
			EmailSubject: "Email account requested",
		},
		{
			Flag:         model.FlagMobilePhone,
			ShortCode:    "5",
			Kind:         "Mobile Phone",
			NamePrefix:   "Provision mobile phone for",
			AssignedTo:   "IT",
			Description:  "Provision mobile phone",
			EmailSubject: "Mobile phone requested",
		},
	}
}
