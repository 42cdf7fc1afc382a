package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
	"github.com/roach88/onboarding/internal/store"
)

// TaskStore is the persistence the Reconciler needs. GetTask and UpdateTask
// report a missing task with an error wrapping store.ErrNotFound. InsertTask
// returns false without error when the id already exists.
//
// Implemented by *store.Store and *store.MemoryTaskStore.
type TaskStore interface {
	GetTask(ctx context.Context, p model.Partition, id string) (model.Task, error)
	InsertTask(ctx context.Context, p model.Partition, t model.Task) (bool, error)
	UpdateTask(ctx context.Context, p model.Partition, id string, patch model.TaskPatch) (model.Task, error)
	ListTasksBySubject(ctx context.Context, p model.Partition, subjectID string) ([]model.Task, error)
}

// Reconciler keeps a subject's tasks in line with its request flags.
//
// Thread-safety: all methods are safe for concurrent use. Calls for the same
// (partition, subject) are serialized.
type Reconciler struct {
	store    TaskStore
	catalogs catalog.Provider
	sink     notify.Sink
	clock    Clock
	logger   *slog.Logger
	locks    *KeyLock
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the timestamp source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New creates a Reconciler. A nil sink discards notifications.
func New(s TaskStore, catalogs catalog.Provider, sink notify.Sink, opts ...Option) *Reconciler {
	if sink == nil {
		sink = notify.Discard
	}
	r := &Reconciler{
		store:    s,
		catalogs: catalogs,
		sink:     sink,
		clock:    SystemClock{},
		logger:   slog.Default(),
		locks:    NewKeyLock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings the subject's tasks in line with its flags, one catalog
// entry at a time. The returned error is non-nil only for pass-level
// failures (missing subject id, unusable catalog); per-flag failures are on
// the Report.
func (r *Reconciler) Reconcile(ctx context.Context, p model.Partition, s model.Subject) (*Report, error) {
	if err := checkIdentity(s); err != nil {
		return nil, err
	}
	cat, err := r.loadCatalog(ctx, p, s)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(LockKey(p, s.ID))
	defer unlock()

	return r.reconcile(ctx, p, s, cat), nil
}

// Propagate copies the subject's full name and manager onto every existing
// task whose copies differ. Status is never touched.
func (r *Reconciler) Propagate(ctx context.Context, p model.Partition, s model.Subject) (*Report, error) {
	if err := checkIdentity(s); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(LockKey(p, s.ID))
	defer unlock()

	return r.propagate(ctx, p, s), nil
}

// Sync runs Reconcile then Propagate under one lock. This is the step to run
// after a submission is created or updated.
func (r *Reconciler) Sync(ctx context.Context, p model.Partition, s model.Subject) (*Report, error) {
	if err := checkIdentity(s); err != nil {
		return nil, err
	}
	cat, err := r.loadCatalog(ctx, p, s)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(LockKey(p, s.ID))
	defer unlock()

	report := r.reconcile(ctx, p, s, cat)
	prop := r.propagate(ctx, p, s)
	report.Outcomes = append(report.Outcomes, prop.Outcomes...)
	return report, nil
}

func checkIdentity(s model.Subject) error {
	if strings.TrimSpace(s.ID) == "" {
		return &SyncError{
			Code:    ErrCodeMissingIdentity,
			Message: "subject has no id",
		}
	}
	return nil
}

// LockKey is the KeyLock key for one subject of a partition.
func LockKey(p model.Partition, subjectID string) string {
	return string(p) + "\x00" + subjectID
}

func (r *Reconciler) loadCatalog(ctx context.Context, p model.Partition, s model.Subject) (*catalog.Catalog, error) {
	cat, err := r.catalogs.Load(ctx, p)
	if err == nil {
		return cat, nil
	}
	code := ErrCodeCatalogUnavailable
	if catalog.IsIntegrityError(err) {
		code = ErrCodeCatalogIntegrity
	}
	r.logger.Error("catalog load failed", "partition", p, "subject_id", s.ID, "error", err)
	return nil, &SyncError{
		Code:      code,
		Message:   "catalog load failed",
		SubjectID: s.ID,
		Err:       err,
	}
}

func (r *Reconciler) reconcile(ctx context.Context, p model.Partition, s model.Subject, cat *catalog.Catalog) *Report {
	report := &Report{
		Partition:          p,
		SubjectID:          s.ID,
		CatalogFingerprint: cat.Fingerprint(),
		Outcomes:           make([]Outcome, 0, cat.Len()),
	}
	for _, tpl := range cat.Entries() {
		report.Outcomes = append(report.Outcomes, r.reconcileFlag(ctx, p, s, tpl))
	}
	r.logger.Debug("reconcile complete",
		"partition", p, "subject_id", s.ID, "changed", report.Changed())
	return report
}

func (r *Reconciler) reconcileFlag(ctx context.Context, p model.Partition, s model.Subject, tpl model.Template) Outcome {
	id := model.ComposeTaskID(s.ID, tpl.ShortCode)
	out := Outcome{Flag: tpl.Flag, TaskID: id, Action: ActionNone}
	logger := r.logger.With("partition", p, "subject_id", s.ID, "task_id", id, "flag", tpl.Flag)

	var existing *model.Task
	got, err := r.store.GetTask(ctx, p, id)
	switch {
	case err == nil:
		existing = &got
		out.Status = got.Status
	case errors.Is(err, store.ErrNotFound):
	default:
		logger.Warn("task lookup failed", "error", err)
		out.Err = &SyncError{
			Code:      ErrCodeStoreRead,
			Message:   "task lookup failed",
			SubjectID: s.ID,
			TaskID:    id,
			Err:       err,
		}
		return out
	}

	action := Decide(s.Requested(tpl.Flag), existing, s.Manager)
	out.Action = action
	if !action.Mutates() {
		return out
	}

	now := r.clock.Now()
	var task model.Task
	if action == ActionCreate {
		task = model.NewTask(p, s, tpl, now)
		inserted, err := r.store.InsertTask(ctx, p, task)
		if err != nil {
			out.Err = r.writeFailure(logger, s, id, action, err)
			return out
		}
		if !inserted {
			// Created by another writer since the lookup. Nothing to announce.
			logger.Info("task already exists, skipping create")
			out.Action = ActionNone
			return out
		}
	} else {
		task, err = r.store.UpdateTask(ctx, p, id, Patch(action, *existing, s))
		if err != nil {
			out.Err = r.writeFailure(logger, s, id, action, err)
			return out
		}
	}
	out.Status = task.Status
	logger.Info("task reconciled", "action", action, "status", task.Status)

	r.notify(ctx, logger, &out, tpl, task, now)
	return out
}

func (r *Reconciler) writeFailure(logger *slog.Logger, s model.Subject, id string, action Action, err error) error {
	logger.Warn("task write failed", "action", action, "error", err)
	return &SyncError{
		Code:      ErrCodeStoreWrite,
		Message:   string(action) + " failed",
		SubjectID: s.ID,
		TaskID:    id,
		Err:       err,
	}
}

var actionEvents = map[Action]notify.Event{
	ActionCreate:  notify.EventCreated,
	ActionResume:  notify.EventResumed,
	ActionRefresh: notify.EventManagerChanged,
	ActionRetire:  notify.EventRetired,
}

// notify sends exactly one message for the transition recorded in out.
func (r *Reconciler) notify(ctx context.Context, logger *slog.Logger, out *Outcome, tpl model.Template, task model.Task, now time.Time) {
	ev, ok := actionEvents[out.Action]
	if !ok {
		return
	}
	msg := notify.Render(tpl, task, ev, now)
	if msg.Destination == "" {
		logger.Debug("no notification destination", "event", ev)
		return
	}
	if err := r.send(ctx, msg); err != nil {
		logger.Warn("notification failed", "event", ev, "destination", msg.Destination, "error", err)
		out.NotifyErr = &SyncError{
			Code:      ErrCodeNotification,
			Message:   string(ev) + " notification failed",
			SubjectID: task.SubjectID,
			TaskID:    task.ID,
			Err:       err,
		}
		return
	}
	out.Notified = ev
}

// send dispatches msg. A panicking sink is reported as an error so the
// task mutation it follows stays applied.
func (r *Reconciler) send(ctx context.Context, msg notify.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panicked: %v", p)
		}
	}()
	return r.sink.Send(ctx, msg)
}

func (r *Reconciler) propagate(ctx context.Context, p model.Partition, s model.Subject) *Report {
	report := &Report{Partition: p, SubjectID: s.ID, Outcomes: []Outcome{}}
	logger := r.logger.With("partition", p, "subject_id", s.ID)

	tasks, err := r.store.ListTasksBySubject(ctx, p, s.ID)
	if err != nil {
		logger.Warn("task list failed", "error", err)
		report.Outcomes = append(report.Outcomes, Outcome{
			Action: ActionPropagate,
			Err: &SyncError{
				Code:      ErrCodeStoreRead,
				Message:   "task list failed",
				SubjectID: s.ID,
				Err:       err,
			},
		})
		return report
	}

	for _, t := range tasks {
		patch := Patch(ActionPropagate, t, s)
		if patch.Empty() {
			continue
		}
		out := Outcome{TaskID: t.ID, Action: ActionPropagate, Status: t.Status}
		updated, err := r.store.UpdateTask(ctx, p, t.ID, patch)
		if err != nil {
			out.Err = r.writeFailure(logger.With("task_id", t.ID), s, t.ID, ActionPropagate, err)
		} else {
			out.Status = updated.Status
			logger.Info("task display fields updated", "task_id", t.ID)
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	return report
}
