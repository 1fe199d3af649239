package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskchat/tasks"
)

var _ TaskStore = (*MemoryTaskStore)(nil)

type memoryRecord struct {
	mu      sync.Mutex
	task    *tasks.Task
	deleted bool
}

// MemoryTaskStore keeps tasks in process memory.
//
// The map and the insertion order are guarded by mu; each record has its own lock so
// read-modify-write on one task never blocks writes to another.
// Lock order is always mu before a record lock.
type MemoryTaskStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	order   []string
	retired map[string]struct{}
	now     func() time.Time
}

// NewMemoryTaskStore creates an empty store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		records: make(map[string]*memoryRecord),
		retired: make(map[string]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Put adds a new task. Ids of deleted tasks stay reserved.
func (s *MemoryTaskStore) Put(ctx context.Context, task *tasks.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[task.ID]; exists {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateID)
	}
	if _, used := s.retired[task.ID]; used {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateID)
	}

	s.records[task.ID] = &memoryRecord{task: task.Clone()}
	s.order = append(s.order, task.ID)
	return nil
}

func (s *MemoryTaskStore) record(id string) (*memoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec, ok
}

// Get retrieves a copy of a task by id.
func (s *MemoryTaskStore) Get(ctx context.Context, id string) (*tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := s.record(id)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.deleted {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return rec.task.Clone(), nil
}

// List returns copies of matching tasks in insertion order.
// The read lock is held for the whole scan, so no Put or Delete interleaves with it.
func (s *MemoryTaskStore) List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tasks.Task, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		rec.mu.Lock()
		if filter.Matches(rec.task) {
			result = append(result, rec.task.Clone())
		}
		rec.mu.Unlock()
	}
	return result, nil
}

// Update applies patch under the record lock and returns the new state.
func (s *MemoryTaskStore) Update(ctx context.Context, id string, patch tasks.Patch) (*tasks.Task, error) {
	rec, ok := s.record(id)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.deleted {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	// last point where an abandoned call can back out without writing
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updated := rec.task.Clone()
	patch.Apply(updated, s.now())
	rec.task = updated

	return updated.Clone(), nil
}

// Delete removes a task. Deleting the same id twice fails with ErrNotFound.
func (s *MemoryTaskStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	rec.mu.Lock()
	rec.deleted = true
	rec.mu.Unlock()

	delete(s.records, id)
	s.retired[id] = struct{}{}
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// IDs returns live ids in insertion order.
func (s *MemoryTaskStore) IDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids, nil
}

// Len returns the number of live tasks.
func (s *MemoryTaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryTaskStore) Close() error {
	return nil
}
