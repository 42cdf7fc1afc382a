package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
)

// OutboxEntry is a persisted notification.
type OutboxEntry struct {
	ID          string         `json:"id"`
	Message     notify.Message `json:"message"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
}

// Outbox is a notify.Sink that records messages in the notifications table
// for a separate delivery process.
type Outbox struct {
	Store *Store
	// NewID generates entry ids. Defaults to UUIDv7 so ids sort by creation.
	NewID func() string
}

func (o *Outbox) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.Must(uuid.NewV7()).String()
}

// Send persists msg. It fails only if the write fails.
func (o *Outbox) Send(ctx context.Context, msg notify.Message) error {
	if err := checkPartition(msg.Partition); err != nil {
		return err
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = o.Store.now()
	}
	id := o.newID()
	_, err := o.Store.db.ExecContext(ctx, `
		INSERT INTO notifications
		(id, partition, subject_id, task_id, flag, event, destination, subject_line, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, string(msg.Partition), msg.SubjectID, msg.TaskID, msg.Flag, string(msg.Event),
		msg.Destination, msg.Subject, msg.Body, formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("outbox %s: %w", msg.TaskID, err)
	}
	return nil
}

// Pending returns undelivered entries for p, oldest first. limit <= 0 means all.
func (o *Outbox) Pending(ctx context.Context, p model.Partition, limit int) ([]OutboxEntry, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	query := `
		SELECT id, partition, subject_id, task_id, flag, event, destination, subject_line, body, created_at, delivered_at
		FROM notifications
		WHERE partition = ? AND delivered_at IS NULL
		ORDER BY created_at ASC, id COLLATE BINARY ASC`
	args := []any{string(p)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := o.Store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	entries := []OutboxEntry{}
	for rows.Next() {
		var e OutboxEntry
		var partition, event, created string
		var delivered sql.NullString
		if err := rows.Scan(
			&e.ID, &partition, &e.Message.SubjectID, &e.Message.TaskID, &e.Message.Flag, &event,
			&e.Message.Destination, &e.Message.Subject, &e.Message.Body, &created, &delivered,
		); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		e.Message.Partition = model.Partition(partition)
		e.Message.Event = notify.Event(event)
		if e.Message.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if delivered.Valid {
			at, err := parseTime(delivered.String)
			if err != nil {
				return nil, err
			}
			e.DeliveredAt = &at
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkDelivered stamps an entry as delivered. Returns ErrNotFound for an
// unknown id.
func (o *Outbox) MarkDelivered(ctx context.Context, id string) error {
	res, err := o.Store.db.ExecContext(ctx,
		`UPDATE notifications SET delivered_at = ? WHERE id = ? AND delivered_at IS NULL`,
		o.Store.stamp(), id)
	if err != nil {
		return fmt.Errorf("mark delivered %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("outbox entry %s: %w", id, ErrNotFound)
	}
	return nil
}
