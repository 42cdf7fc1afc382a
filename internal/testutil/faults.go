package testutil

import (
	"context"
	"sync"

	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
)

// TaskStore mirrors the task store methods the engine depends on.
type TaskStore interface {
	GetTask(ctx context.Context, p model.Partition, id string) (model.Task, error)
	InsertTask(ctx context.Context, p model.Partition, t model.Task) (bool, error)
	UpdateTask(ctx context.Context, p model.Partition, id string, patch model.TaskPatch) (model.Task, error)
	ListTasksBySubject(ctx context.Context, p model.Partition, subjectID string) ([]model.Task, error)
}

// FaultyTaskStore wraps a TaskStore, injects per-task failures and counts
// successful writes.
type FaultyTaskStore struct {
	inner TaskStore

	mu         sync.Mutex
	failGet    map[string]error
	failInsert map[string]error
	failUpdate map[string]error
	failList   error
	inserts    int
	updates    int
}

// NewFaultyTaskStore wraps inner with no failures configured.
func NewFaultyTaskStore(inner TaskStore) *FaultyTaskStore {
	return &FaultyTaskStore{
		inner:      inner,
		failGet:    map[string]error{},
		failInsert: map[string]error{},
		failUpdate: map[string]error{},
	}
}

// FailGet makes GetTask(taskID) return err. A nil err clears the fault.
func (f *FaultyTaskStore) FailGet(taskID string, err error) { f.set(f.failGet, taskID, err) }

// FailInsert makes InsertTask for taskID return err.
func (f *FaultyTaskStore) FailInsert(taskID string, err error) { f.set(f.failInsert, taskID, err) }

// FailUpdate makes UpdateTask(taskID) return err.
func (f *FaultyTaskStore) FailUpdate(taskID string, err error) { f.set(f.failUpdate, taskID, err) }

// FailList makes ListTasksBySubject return err.
func (f *FaultyTaskStore) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failList = err
}

func (f *FaultyTaskStore) set(m map[string]error, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(m, id)
		return
	}
	m[id] = err
}

func (f *FaultyTaskStore) fault(m map[string]error, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[id]
}

// Writes returns the number of successful inserts and updates so far.
func (f *FaultyTaskStore) Writes() (inserts, updates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts, f.updates
}

func (f *FaultyTaskStore) GetTask(ctx context.Context, p model.Partition, id string) (model.Task, error) {
	if err := f.fault(f.failGet, id); err != nil {
		return model.Task{}, err
	}
	return f.inner.GetTask(ctx, p, id)
}

func (f *FaultyTaskStore) InsertTask(ctx context.Context, p model.Partition, t model.Task) (bool, error) {
	if err := f.fault(f.failInsert, t.ID); err != nil {
		return false, err
	}
	ok, err := f.inner.InsertTask(ctx, p, t)
	if err == nil && ok {
		f.mu.Lock()
		f.inserts++
		f.mu.Unlock()
	}
	return ok, err
}

func (f *FaultyTaskStore) UpdateTask(ctx context.Context, p model.Partition, id string, patch model.TaskPatch) (model.Task, error) {
	if err := f.fault(f.failUpdate, id); err != nil {
		return model.Task{}, err
	}
	t, err := f.inner.UpdateTask(ctx, p, id, patch)
	if err == nil {
		f.mu.Lock()
		f.updates++
		f.mu.Unlock()
	}
	return t, err
}

func (f *FaultyTaskStore) ListTasksBySubject(ctx context.Context, p model.Partition, subjectID string) ([]model.Task, error) {
	f.mu.Lock()
	err := f.failList
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.inner.ListTasksBySubject(ctx, p, subjectID)
}

// FailingSink rejects every message with Err and counts attempts.
type FailingSink struct {
	Err error

	mu       sync.Mutex
	attempts []notify.Message
}

func (s *FailingSink) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, msg)
	return s.Err
}

// Attempts returns every message the sink was asked to deliver.
func (s *FailingSink) Attempts() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Message, len(s.attempts))
	copy(out, s.attempts)
	return out
}
