package store

import (
	"context"
	"errors"

	"taskchat/tasks"
)

var (
	// ErrNotFound is returned when no live task has the requested id.
	ErrNotFound = errors.New("task not found")
	// ErrDuplicateID is returned when an id is already present or was used by a deleted task.
	ErrDuplicateID = errors.New("task id already used")
)

// TaskStore defines the contract for task persistence.
//
// Implementations serialize writes per task id, return copies that callers may mutate
// freely, and keep List in insertion order.
type TaskStore interface {
	Put(ctx context.Context, task *tasks.Task) error
	Get(ctx context.Context, id string) (*tasks.Task, error)
	List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error)
	Update(ctx context.Context, id string, patch tasks.Patch) (*tasks.Task, error)
	Delete(ctx context.Context, id string) error
	// IDs returns the ids of every live task in insertion order.
	IDs(ctx context.Context) ([]string, error)
	Close() error
}
