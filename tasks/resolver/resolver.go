package resolver

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"taskchat/errors"
	"taskchat/tasks"
	"taskchat/tasks/store"
)

// Resolver turns a user-supplied id prefix into exactly one task.
//
// Resolution scans every live id, which is O(n) per lookup. That is fine for the store
// sizes this service targets; a sorted index would be the place to start if it is not.
type Resolver struct {
	store store.TaskStore
}

func New(s store.TaskStore) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the single task whose id starts with prefix (case-sensitive, byte-wise).
// A full id always resolves to its task. Errors are *errors.TaskError: validation for an
// empty prefix, not_found for no match, ambiguous_prefix carrying every matching id.
func (r *Resolver) Resolve(ctx context.Context, prefix string) (*tasks.Task, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.NewValidationError("task id is required")
	}

	matches, err := r.Matches(ctx, prefix)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, errors.NewNotFoundError(fmt.Sprintf("no task matches %q", prefix))
	case 1:
		task, err := r.store.Get(ctx, matches[0])
		if stderrors.Is(err, store.ErrNotFound) {
			// deleted after the scan
			return nil, errors.NewNotFoundError(fmt.Sprintf("no task matches %q", prefix))
		}
		if err != nil {
			return nil, errors.NewInternalError("failed to load task", err)
		}
		return task, nil
	default:
		return nil, errors.NewAmbiguousPrefixError(prefix, matches)
	}
}

// Matches returns every live id starting with prefix, in insertion order.
func (r *Resolver) Matches(ctx context.Context, prefix string) ([]string, error) {
	ids, err := r.store.IDs(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to scan task ids", err)
	}

	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	return matches, nil
}
