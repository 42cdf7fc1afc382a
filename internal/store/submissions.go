package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/onboarding/internal/model"
)

const submissionColumns = `id, first_name, last_name, manager, department, location,
	position_title, flags, extra, created_at, updated_at`

func scanSubmission(row rowScanner) (model.Subject, error) {
	var s model.Subject
	var flags, extra, created, updated string
	err := row.Scan(
		&s.ID, &s.FirstName, &s.LastName, &s.Manager, &s.Department, &s.Location,
		&s.PositionTitle, &flags, &extra, &created, &updated,
	)
	if err != nil {
		return model.Subject{}, err
	}
	if err := json.Unmarshal([]byte(flags), &s.Flags); err != nil {
		return model.Subject{}, fmt.Errorf("decode flags: %w", err)
	}
	if err := json.Unmarshal([]byte(extra), &s.Extra); err != nil {
		return model.Subject{}, fmt.Errorf("decode extra: %w", err)
	}
	if len(s.Extra) == 0 {
		s.Extra = nil
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return model.Subject{}, err
	}
	if s.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Subject{}, err
	}
	return s, nil
}

func encodeSubjectMaps(s model.Subject) (string, string, error) {
	flags := s.Flags
	if flags == nil {
		flags = map[string]bool{}
	}
	f, err := json.Marshal(flags)
	if err != nil {
		return "", "", fmt.Errorf("encode flags: %w", err)
	}
	extra := s.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	e, err := json.Marshal(extra)
	if err != nil {
		return "", "", fmt.Errorf("encode extra: %w", err)
	}
	return string(f), string(e), nil
}

// InsertSubmission stores a new subject. Returns ErrConflict if the id is
// already taken in p.
func (s *Store) InsertSubmission(ctx context.Context, p model.Partition, sub model.Subject) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	if sub.ID == "" {
		return errors.New("insert submission: empty id")
	}
	flags, extra, err := encodeSubjectMaps(sub)
	if err != nil {
		return fmt.Errorf("insert submission %s: %w", sub.ID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (partition, `+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(partition, id) DO NOTHING
	`,
		string(p), sub.ID, sub.FirstName, sub.LastName, sub.Manager, sub.Department, sub.Location,
		sub.PositionTitle, flags, extra, formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert submission %s: %w", sub.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s: %w", sub.ID, ErrConflict)
	}
	return nil
}

// GetSubmission returns the subject with id, or ErrNotFound.
func (s *Store) GetSubmission(ctx context.Context, p model.Partition, id string) (model.Subject, error) {
	if err := checkPartition(p); err != nil {
		return model.Subject{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE partition = ? AND id = ?`, string(p), id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subject{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Subject{}, fmt.Errorf("get submission %s: %w", id, err)
	}
	return sub, nil
}

// UpdateSubmission replaces the stored subject and stamps updated_at.
// Merging partial input is the caller's job.
func (s *Store) UpdateSubmission(ctx context.Context, p model.Partition, sub model.Subject) (model.Subject, error) {
	if err := checkPartition(p); err != nil {
		return model.Subject{}, err
	}
	flags, extra, err := encodeSubjectMaps(sub)
	if err != nil {
		return model.Subject{}, fmt.Errorf("update submission %s: %w", sub.ID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET
			first_name = ?, last_name = ?, manager = ?, department = ?, location = ?,
			position_title = ?, flags = ?, extra = ?, updated_at = ?
		WHERE partition = ? AND id = ?
	`,
		sub.FirstName, sub.LastName, sub.Manager, sub.Department, sub.Location,
		sub.PositionTitle, flags, extra, s.stamp(), string(p), sub.ID,
	)
	if err != nil {
		return model.Subject{}, fmt.Errorf("update submission %s: %w", sub.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Subject{}, fmt.Errorf("submission %s: %w", sub.ID, ErrNotFound)
	}
	return s.GetSubmission(ctx, p, sub.ID)
}

// ListSubmissions returns every subject in p ordered by id.
func (s *Store) ListSubmissions(ctx context.Context, p model.Partition) ([]model.Subject, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE partition = ?
		ORDER BY id COLLATE BINARY ASC
	`, string(p))
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []model.Subject{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}

// DeleteSubmission removes a subject. Its tasks are left in place.
func (s *Store) DeleteSubmission(ctx context.Context, p model.Partition, id string) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE partition = ? AND id = ?`, string(p), id)
	if err != nil {
		return fmt.Errorf("delete submission %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return nil
}
