package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/onboarding/internal/model"
)

type taskKey struct {
	partition model.Partition
	id        string
}

// MemoryTaskStore keeps tasks in process. It has the same semantics as the
// SQLite task methods, including idempotent insert.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[taskKey]model.Task
	now   func() time.Time
}

// NewMemoryTaskStore creates an empty store. A nil now uses time.Now.
func NewMemoryTaskStore(now func() time.Time) *MemoryTaskStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryTaskStore{tasks: make(map[taskKey]model.Task), now: now}
}

func (m *MemoryTaskStore) GetTask(ctx context.Context, p model.Partition, id string) (model.Task, error) {
	if err := checkPartition(p); err != nil {
		return model.Task{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskKey{p, id}]
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (m *MemoryTaskStore) InsertTask(ctx context.Context, p model.Partition, t model.Task) (bool, error) {
	if err := checkPartition(p); err != nil {
		return false, err
	}
	if t.ID == "" {
		return false, errors.New("insert task: empty task id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := taskKey{p, t.ID}
	if _, exists := m.tasks[k]; exists {
		return false, nil
	}
	t.Partition = p
	m.tasks[k] = t
	return true, nil
}

func (m *MemoryTaskStore) UpdateTask(ctx context.Context, p model.Partition, id string, patch model.TaskPatch) (model.Task, error) {
	if err := checkPartition(p); err != nil {
		return model.Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := taskKey{p, id}
	t, ok := m.tasks[k]
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	t = patch.Apply(t)
	t.UpdatedAt = m.now()
	m.tasks[k] = t
	return t, nil
}

func (m *MemoryTaskStore) ListTasksBySubject(ctx context.Context, p model.Partition, subjectID string) ([]model.Task, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	return m.list(func(k taskKey, t model.Task) bool {
		return k.partition == p && t.SubjectID == subjectID
	}), nil
}

func (m *MemoryTaskStore) ListTasks(ctx context.Context, p model.Partition) ([]model.Task, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	return m.list(func(k taskKey, _ model.Task) bool { return k.partition == p }), nil
}

func (m *MemoryTaskStore) DeleteTask(ctx context.Context, p model.Partition, id string) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := taskKey{p, id}
	if _, ok := m.tasks[k]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(m.tasks, k)
	return nil
}

func (m *MemoryTaskStore) list(keep func(taskKey, model.Task) bool) []model.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Task{}
	for k, t := range m.tasks {
		if keep(k, t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b model.Task) int {
		if c := strings.Compare(a.SubjectID, b.SubjectID); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// MemorySubmissionStore keeps subjects in process.
type MemorySubmissionStore struct {
	mu   sync.RWMutex
	subs map[taskKey]model.Subject
	now  func() time.Time
}

// NewMemorySubmissionStore creates an empty store. A nil now uses time.Now.
func NewMemorySubmissionStore(now func() time.Time) *MemorySubmissionStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySubmissionStore{subs: make(map[taskKey]model.Subject), now: now}
}

func (m *MemorySubmissionStore) InsertSubmission(ctx context.Context, p model.Partition, sub model.Subject) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	if sub.ID == "" {
		return errors.New("insert submission: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := taskKey{p, sub.ID}
	if _, ok := m.subs[k]; ok {
		return fmt.Errorf("submission %s: %w", sub.ID, ErrConflict)
	}
	m.subs[k] = sub
	return nil
}

func (m *MemorySubmissionStore) GetSubmission(ctx context.Context, p model.Partition, id string) (model.Subject, error) {
	if err := checkPartition(p); err != nil {
		return model.Subject{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[taskKey{p, id}]
	if !ok {
		return model.Subject{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return sub, nil
}

func (m *MemorySubmissionStore) UpdateSubmission(ctx context.Context, p model.Partition, sub model.Subject) (model.Subject, error) {
	if err := checkPartition(p); err != nil {
		return model.Subject{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := taskKey{p, sub.ID}
	old, ok := m.subs[k]
	if !ok {
		return model.Subject{}, fmt.Errorf("submission %s: %w", sub.ID, ErrNotFound)
	}
	sub.CreatedAt = old.CreatedAt
	sub.UpdatedAt = m.now()
	m.subs[k] = sub
	return sub, nil
}

func (m *MemorySubmissionStore) ListSubmissions(ctx context.Context, p model.Partition) ([]model.Subject, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Subject{}
	for k, sub := range m.subs {
		if k.partition == p {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b model.Subject) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemorySubmissionStore) DeleteSubmission(ctx context.Context, p model.Partition, id string) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := taskKey{p, id}
	if _, ok := m.subs[k]; !ok {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	delete(m.subs, k)
	return nil
}
