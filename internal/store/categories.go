package store

import (
	"context"
	"fmt"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/model"
)

const categoryColumns = `flag, short_code, task_type, name_prefix, assigned_to, description,
	to_email, to_phone, email_subject, message_template`

// ListCategories returns the template rows for p ordered by flag.
func (s *Store) ListCategories(ctx context.Context, p model.Partition) ([]model.Template, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM task_categories
		WHERE partition = ?
		ORDER BY flag COLLATE BINARY ASC
	`, string(p))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(
			&t.Flag, &t.ShortCode, &t.Kind, &t.NamePrefix, &t.AssignedTo, &t.Description,
			&t.ToEmail, &t.ToPhone, &t.EmailSubject, &t.MessageTemplate,
		); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// ReplaceCategories swaps the category rows of p for templates in one
// transaction. The templates are validated as a catalog first, so a bad
// import leaves the existing rows untouched.
func (s *Store) ReplaceCategories(ctx context.Context, p model.Partition, templates []model.Template) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	c, err := catalog.New(p, templates)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_categories WHERE partition = ?`, string(p)); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for _, t := range c.Entries() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_categories (partition, `+categoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			string(p), t.Flag, t.ShortCode, t.Kind, t.NamePrefix, t.AssignedTo, t.Description,
			t.ToEmail, t.ToPhone, t.EmailSubject, t.MessageTemplate,
		)
		if err != nil {
			return fmt.Errorf("insert category %s: %w", t.Flag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CategoryProvider serves catalogs from the task_categories table. A
// partition with no rows yields catalog.ErrEmpty, so it is usually wrapped in
// catalog.Fallback.
type CategoryProvider struct {
	Store *Store
}

func (cp CategoryProvider) Load(ctx context.Context, p model.Partition) (*catalog.Catalog, error) {
	tpls, err := cp.Store.ListCategories(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if len(tpls) == 0 {
		return nil, catalog.ErrEmpty
	}
	return catalog.New(p, tpls)
}
