package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/onboarding/internal/model"
)

const taskColumns = `task_id, partition, name, description, task_type, assigned_to,
	employee_full_name, subject_id, manager, to_email, to_phone, status,
	cancellation_reason, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	var partition, status, created, updated string
	err := row.Scan(
		&t.ID, &partition, &t.Name, &t.Description, &t.Kind, &t.AssignedTo,
		&t.EmployeeFullName, &t.SubjectID, &t.Manager, &t.ToEmail, &t.ToPhone, &status,
		&t.CancellationReason, &created, &updated,
	)
	if err != nil {
		return model.Task{}, err
	}
	t.Partition = model.Partition(partition)
	t.Status = model.Status(status)
	if t.CreatedAt, err = parseTime(created); err != nil {
		return model.Task{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// GetTask returns the task with id in partition p, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, p model.Partition, id string) (model.Task, error) {
	if err := checkPartition(p); err != nil {
		return model.Task{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE partition = ? AND task_id = ?`, string(p), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// InsertTask writes t unless a task with the same id already exists in p.
// Returns inserted=false for the duplicate case. A second insert is never an
// error, which keeps concurrent or repeated creates safe.
func (s *Store) InsertTask(ctx context.Context, p model.Partition, t model.Task) (bool, error) {
	if err := checkPartition(p); err != nil {
		return false, err
	}
	if t.ID == "" {
		return false, errors.New("insert task: empty task id")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(partition, task_id) DO NOTHING
	`,
		t.ID, string(p), t.Name, t.Description, t.Kind, t.AssignedTo,
		t.EmployeeFullName, t.SubjectID, t.Manager, t.ToEmail, t.ToPhone, string(t.Status),
		t.CancellationReason, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return n == 1, nil
}

// UpdateTask applies patch to the task and stamps updated_at. It returns the
// task as stored after the update, or ErrNotFound.
func (s *Store) UpdateTask(ctx context.Context, p model.Partition, id string, patch model.TaskPatch) (model.Task, error) {
	if err := checkPartition(p); err != nil {
		return model.Task{}, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{s.stamp()}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	add("description", patch.Description)
	add("manager", patch.Manager)
	add("employee_full_name", patch.EmployeeFullName)
	add("cancellation_reason", patch.CancellationReason)
	args = append(args, string(p), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE partition = ? AND task_id = ?`, args...)
	if err != nil {
		return model.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	if n == 0 {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return s.GetTask(ctx, p, id)
}

// ListTasksBySubject returns every task of subjectID in p, ordered by id.
func (s *Store) ListTasksBySubject(ctx context.Context, p model.Partition, subjectID string) ([]model.Task, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE partition = ? AND subject_id = ?
		ORDER BY task_id COLLATE BINARY ASC
	`, string(p), subjectID)
}

// ListTasks returns every task in p, ordered by subject then id.
func (s *Store) ListTasks(ctx context.Context, p model.Partition) ([]model.Task, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE partition = ?
		ORDER BY subject_id COLLATE BINARY ASC, task_id COLLATE BINARY ASC
	`, string(p))
}

// DeleteTask removes a task. Returns ErrNotFound if it did not exist.
func (s *Store) DeleteTask(ctx context.Context, p model.Partition, id string) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE partition = ? AND task_id = ?`, string(p), id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}
