package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/onboarding/internal/engine"
	"github.com/roach88/onboarding/internal/model"
)

var (
	// ErrTaskClosed is returned when completing or cancelling a task that is
	// already Completed or Cancelled.
	ErrTaskClosed = errors.New("task already closed")

	// ErrReasonRequired is returned when cancelling without a reason.
	ErrReasonRequired = errors.New("cancellation reason is required")
)

// SubmissionStore persists submissions.
//
// Implemented by *store.Store and *store.MemorySubmissionStore.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, p model.Partition, sub model.Subject) error
	GetSubmission(ctx context.Context, p model.Partition, id string) (model.Subject, error)
	UpdateSubmission(ctx context.Context, p model.Partition, sub model.Subject) (model.Subject, error)
	ListSubmissions(ctx context.Context, p model.Partition) ([]model.Subject, error)
	DeleteSubmission(ctx context.Context, p model.Partition, id string) error
}

// TaskStore is the task access the service needs on top of the engine's.
//
// Implemented by *store.Store and *store.MemoryTaskStore.
type TaskStore interface {
	engine.TaskStore
	ListTasks(ctx context.Context, p model.Partition) ([]model.Task, error)
	DeleteTask(ctx context.Context, p model.Partition, id string) error
}

// Syncer runs a reconcile and propagate pass for one subject.
type Syncer interface {
	Sync(ctx context.Context, p model.Partition, s model.Subject) (*engine.Report, error)
}

// Result is the outcome of a submission write.
type Result struct {
	Subject model.Subject
	Report  *engine.Report

	// SyncErr is set when the pass aborted or any step failed to apply.
	// The submission itself was saved.
	SyncErr error
}

// Degraded reports whether the follow-up sync did not fully apply.
func (r Result) Degraded() bool { return r.SyncErr != nil }

// Service manages submissions and their tasks within explicit partitions.
type Service struct {
	subs   SubmissionStore
	tasks  TaskStore
	syncer Syncer
	ids    IDGenerator
	clock  engine.Clock
	logger *slog.Logger
	locks  *engine.KeyLock
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator sets the subject id source. Default: UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock sets the source of submission timestamps. Default: engine.SystemClock.
func WithClock(c engine.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(subs SubmissionStore, tasks TaskStore, syncer Syncer, opts ...Option) *Service {
	s := &Service{
		subs:   subs,
		tasks:  tasks,
		syncer: syncer,
		ids:    UUIDv7{},
		clock:  engine.SystemClock{},
		logger: slog.Default(),
		locks:  engine.NewKeyLock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create saves a new submission built from raw form fields and syncs its
// tasks. A subject id is generated unless fields carry one.
func (s *Service) Create(ctx context.Context, p model.Partition, fields map[string]any) (Result, error) {
	sub := model.SubjectFromFields(fields)
	if sub.ID == "" {
		sub.ID = s.ids.Generate()
	}
	now := s.clock.Now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	if err := s.subs.InsertSubmission(ctx, p, sub); err != nil {
		return Result{}, fmt.Errorf("create submission: %w", err)
	}
	saved, err := s.subs.GetSubmission(ctx, p, sub.ID)
	if err != nil {
		return Result{}, fmt.Errorf("create submission: %w", err)
	}
	s.logger.Info("submission created", "partition", p, "subject_id", saved.ID)
	return s.sync(ctx, p, saved), nil
}

// Update merges fields onto the stored submission and syncs its tasks.
// Fields absent from the update keep their stored values. Updates of one
// submission are serialized, so concurrent merges never drop fields.
func (s *Service) Update(ctx context.Context, p model.Partition, id string, fields map[string]any) (Result, error) {
	unlock := s.locks.Lock(engine.LockKey(p, id))
	defer unlock()

	current, err := s.subs.GetSubmission(ctx, p, id)
	if err != nil {
		return Result{}, fmt.Errorf("update submission %s: %w", id, err)
	}
	merged := model.ApplyFields(current, fields)
	saved, err := s.subs.UpdateSubmission(ctx, p, merged)
	if err != nil {
		return Result{}, fmt.Errorf("update submission %s: %w", id, err)
	}
	s.logger.Info("submission updated", "partition", p, "subject_id", id)
	return s.sync(ctx, p, saved), nil
}

// Resync reruns the sync for a stored submission. Use it to retry after a
// degraded write.
func (s *Service) Resync(ctx context.Context, p model.Partition, id string) (Result, error) {
	current, err := s.subs.GetSubmission(ctx, p, id)
	if err != nil {
		return Result{}, fmt.Errorf("resync submission %s: %w", id, err)
	}
	return s.sync(ctx, p, current), nil
}

func (s *Service) sync(ctx context.Context, p model.Partition, sub model.Subject) Result {
	res := Result{Subject: sub}
	report, err := s.syncer.Sync(ctx, p, sub)
	if err != nil {
		s.logger.Warn("sync aborted", "partition", p, "subject_id", sub.ID, "error", err)
		res.SyncErr = err
		return res
	}
	res.Report = report
	if err := report.Err(); err != nil {
		s.logger.Warn("sync incomplete", "partition", p, "subject_id", sub.ID, "error", err)
		res.SyncErr = err
	}
	if err := report.NotifyErr(); err != nil {
		s.logger.Warn("notifications failed", "partition", p, "subject_id", sub.ID, "error", err)
	}
	return res
}

// Get returns one submission.
func (s *Service) Get(ctx context.Context, p model.Partition, id string) (model.Subject, error) {
	return s.subs.GetSubmission(ctx, p, id)
}

// List returns every submission in the partition.
func (s *Service) List(ctx context.Context, p model.Partition) ([]model.Subject, error) {
	return s.subs.ListSubmissions(ctx, p)
}

// Delete removes a submission. Its tasks are kept as a record of the work.
func (s *Service) Delete(ctx context.Context, p model.Partition, id string) error {
	if err := s.subs.DeleteSubmission(ctx, p, id); err != nil {
		return fmt.Errorf("delete submission %s: %w", id, err)
	}
	s.logger.Info("submission deleted", "partition", p, "subject_id", id)
	return nil
}

// Tasks returns the tasks of one subject, or of the whole partition when
// subjectID is empty.
func (s *Service) Tasks(ctx context.Context, p model.Partition, subjectID string) ([]model.Task, error) {
	if subjectID == "" {
		return s.tasks.ListTasks(ctx, p)
	}
	return s.tasks.ListTasksBySubject(ctx, p, subjectID)
}

// Task returns one task by id.
func (s *Service) Task(ctx context.Context, p model.Partition, id string) (model.Task, error) {
	return s.tasks.GetTask(ctx, p, id)
}

// CompleteTask marks a task Completed.
func (s *Service) CompleteTask(ctx context.Context, p model.Partition, id string) (model.Task, error) {
	return s.close(ctx, p, id, model.TaskPatch{Status: model.Ptr(model.StatusCompleted)})
}

// CancelTask marks a task Cancelled and records why.
func (s *Service) CancelTask(ctx context.Context, p model.Partition, id, reason string) (model.Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Task{}, ErrReasonRequired
	}
	return s.close(ctx, p, id, model.TaskPatch{
		Status:             model.Ptr(model.StatusCancelled),
		CancellationReason: model.Ptr(reason),
	})
}

func (s *Service) close(ctx context.Context, p model.Partition, id string, patch model.TaskPatch) (model.Task, error) {
	current, err := s.tasks.GetTask(ctx, p, id)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	if current.Status.Terminal() {
		return model.Task{}, fmt.Errorf("task %s is %s: %w", id, current.Status, ErrTaskClosed)
	}
	updated, err := s.tasks.UpdateTask(ctx, p, id, patch)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	s.logger.Info("task closed", "partition", p, "task_id", id, "status", updated.Status)
	return updated, nil
}

// DeleteTask removes a task outright. A later sync recreates it if its
// flag is still requested.
func (s *Service) DeleteTask(ctx context.Context, p model.Partition, id string) error {
	if err := s.tasks.DeleteTask(ctx, p, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	s.logger.Info("task deleted", "partition", p, "task_id", id)
	return nil
}
