package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"taskchat/errors"
	"taskchat/logger"
	"taskchat/tasks"
	"taskchat/tasks/resolver"
	"taskchat/tasks/store"
)

// Service defines the task operations shared by the CRUD surface and the chat engine.
// Every error it returns is an *errors.TaskError.
type Service interface {
	// CreateTask adds a pending task. The title must be non-empty after trimming.
	CreateTask(ctx context.Context, owner, title string, description *string) (*tasks.Task, error)

	// GetTask returns the task addressed by a full id or a unique prefix.
	GetTask(ctx context.Context, idOrPrefix string) (*tasks.Task, error)

	// ListTasks returns tasks in insertion order. An empty owner lists every owner's tasks.
	ListTasks(ctx context.Context, owner string, filter tasks.Filter) ([]*tasks.Task, error)

	// UpdateTask changes the fields present in fields and leaves the others alone.
	UpdateTask(ctx context.Context, idOrPrefix string, fields tasks.Fields) (*tasks.Task, error)

	// DeleteTask removes a task permanently.
	DeleteTask(ctx context.Context, idOrPrefix string) error

	// SetCompletion sets the completed flag. Repeating a call yields the same state without error.
	SetCompletion(ctx context.Context, idOrPrefix string, completed bool) (*tasks.Task, error)
}

type service struct {
	store    store.TaskStore
	resolver *resolver.Resolver
	logger   *logger.Logger
}

var _ Service = (*service)(nil)

// New constructs a Service over the given store.
func New(s store.TaskStore, lg *logger.Logger) Service {
	return &service{
		store:    s,
		resolver: resolver.New(s),
		logger:   lg,
	}
}

func (s *service) CreateTask(ctx context.Context, owner, title string, description *string) (*tasks.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.NewValidationError("task title is required")
	}

	task := tasks.NewTask(owner, title, description)

	if err := s.store.Put(ctx, task); err != nil {
		if stderrors.Is(err, store.ErrDuplicateID) {
			// ids are random 128-bit values; a collision means generation is broken
			s.logger.Error("duplicate task id generated", map[string]any{
				"task_id": task.ID,
				"error":   err.Error(),
			})
			return nil, errors.NewInternalError("failed to allocate task id", err)
		}
		return nil, s.storeFailure(task.ID, "failed to save task", err)
	}

	s.logger.Task(task.ID, "task created", map[string]any{
		"owner":           owner,
		"has_description": task.Description != nil,
	})
	return task, nil
}

func (s *service) GetTask(ctx context.Context, idOrPrefix string) (*tasks.Task, error) {
	return s.resolver.Resolve(ctx, idOrPrefix)
}

func (s *service) ListTasks(ctx context.Context, owner string, filter tasks.Filter) ([]*tasks.Task, error) {
	all, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, s.storeFailure("", "failed to list tasks", err)
	}
	if owner == "" {
		return all, nil
	}

	owned := make([]*tasks.Task, 0, len(all))
	for _, task := range all {
		if task.Owner == owner {
			owned = append(owned, task)
		}
	}
	return owned, nil
}

func (s *service) UpdateTask(ctx context.Context, idOrPrefix string, fields tasks.Fields) (*tasks.Task, error) {
	patch := tasks.Patch{Description: fields.Description}
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, errors.NewValidationError("task title cannot be empty")
		}
		patch.Title = &title
	}

	task, err := s.apply(ctx, idOrPrefix, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Task(task.ID, "task updated", map[string]any{
		"title_changed":       fields.Title != nil,
		"description_changed": fields.Description != nil,
	})
	return task, nil
}

func (s *service) SetCompletion(ctx context.Context, idOrPrefix string, completed bool) (*tasks.Task, error) {
	task, err := s.apply(ctx, idOrPrefix, tasks.Patch{Completed: &completed})
	if err != nil {
		return nil, err
	}

	s.logger.Task(task.ID, "task completion set", map[string]any{
		"completed": completed,
	})
	return task, nil
}

func (s *service) DeleteTask(ctx context.Context, idOrPrefix string) error {
	task, err := s.resolver.Resolve(ctx, idOrPrefix)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, task.ID); err != nil {
		return s.storeFailure(task.ID, "failed to delete task", err)
	}

	s.logger.Task(task.ID, "task deleted")
	return nil
}

// apply resolves the reference and hands the patch to the store, which performs the
// read-modify-write under its own per-id lock.
func (s *service) apply(ctx context.Context, idOrPrefix string, patch tasks.Patch) (*tasks.Task, error) {
	target, err := s.resolver.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	task, err := s.store.Update(ctx, target.ID, patch)
	if err != nil {
		return nil, s.storeFailure(target.ID, "failed to update task", err)
	}
	return task, nil
}

// storeFailure maps a store error to a TaskError, logging anything unexpected.
func (s *service) storeFailure(taskID, message string, err error) error {
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewNotFoundError(fmt.Sprintf("task %s not found", taskID))
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewInternalError("request cancelled", err)
	}

	s.logger.Error(message, map[string]any{
		"task_id": taskID,
		"error":   err.Error(),
	})
	return errors.NewInternalError(message, err)
}
