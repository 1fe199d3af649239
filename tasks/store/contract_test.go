package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"

	"taskchat/tasks"
)

// runContractTests exercises the TaskStore contract against any backend.
// newStore must return an empty store.
func runContractTests(t *testing.T, newStore func(t *testing.T) TaskStore) {
	ctx := context.Background()

	t.Run("put then get returns a copy", func(t *testing.T) {
		s := newStore(t)
		task := tasks.NewTask("alice", "Buy milk", tasks.Ptr("2 litres"))
		require.NoError(t, s.Put(ctx, task))

		got, err := s.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, "alice", got.Owner)
		assert.Equal(t, "Buy milk", got.Title)
		assert.Equal(t, "2 litres", got.DescriptionText())
		assert.Assert(t, !got.Completed)

		got.Title = "hacked"
		again, err := s.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Buy milk", again.Title)
	})

	t.Run("put duplicate id", func(t *testing.T) {
		s := newStore(t)
		task := tasks.NewTask("alice", "Buy milk", nil)
		require.NoError(t, s.Put(ctx, task))

		err := s.Put(ctx, task)
		require.Error(t, err)
		assert.Assert(t, errors.Is(err, ErrDuplicateID))
	})

	t.Run("deleted id is never reused", func(t *testing.T) {
		s := newStore(t)
		task := tasks.NewTask("alice", "Buy milk", nil)
		require.NoError(t, s.Put(ctx, task))
		require.NoError(t, s.Delete(ctx, task.ID))

		err := s.Put(ctx, task)
		assert.Assert(t, errors.Is(err, ErrDuplicateID))
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "does-not-exist")
		assert.Assert(t, errors.Is(err, ErrNotFound))
	})

	t.Run("list keeps insertion order and filters", func(t *testing.T) {
		s := newStore(t)
		a := tasks.NewTask("alice", "a", nil)
		b := tasks.NewTask("bob", "b", nil)
		c := tasks.NewTask("alice", "c", nil)
		for _, task := range []*tasks.Task{a, b, c} {
			require.NoError(t, s.Put(ctx, task))
		}

		// mutating a task must not move it
		_, err := s.Update(ctx, a.ID, tasks.Patch{Completed: tasks.Ptr(true)})
		require.NoError(t, err)

		all, err := s.List(ctx, tasks.FilterAll)
		require.NoError(t, err)
		assert.DeepEqual(t, []string{a.ID, b.ID, c.ID}, ids(all))

		pending, err := s.List(ctx, tasks.FilterPending)
		require.NoError(t, err)
		assert.DeepEqual(t, []string{b.ID, c.ID}, ids(pending))

		completed, err := s.List(ctx, tasks.FilterCompleted)
		require.NoError(t, err)
		assert.DeepEqual(t, []string{a.ID}, ids(completed))

		got, err := s.IDs(ctx)
		require.NoError(t, err)
		assert.DeepEqual(t, []string{a.ID, b.ID, c.ID}, got)
	})

	t.Run("list empty store", func(t *testing.T) {
		s := newStore(t)
		all, err := s.List(ctx, tasks.FilterAll)
		require.NoError(t, err)
		assert.Equal(t, 0, len(all))
	})

	t.Run("update applies patch and refreshes updated_at", func(t *testing.T) {
		s := newStore(t)
		task := tasks.NewTask("alice", "Buy milk", tasks.Ptr("note"))
		require.NoError(t, s.Put(ctx, task))

		updated, err := s.Update(ctx, task.ID, tasks.Patch{Title: tasks.Ptr("Buy oat milk")})
		require.NoError(t, err)
		assert.Equal(t, "Buy oat milk", updated.Title)
		assert.Equal(t, "note", updated.DescriptionText())
		assert.Assert(t, updated.UpdatedAt.After(task.UpdatedAt))

		cleared, err := s.Update(ctx, task.ID, tasks.Patch{Description: tasks.Ptr("")})
		require.NoError(t, err)
		assert.Assert(t, cleared.Description == nil)
		assert.Assert(t, cleared.UpdatedAt.After(updated.UpdatedAt))

		stored, err := s.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Buy oat milk", stored.Title)
		assert.Assert(t, stored.Description == nil)
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(ctx, "missing", tasks.Patch{Completed: tasks.Ptr(true)})
		assert.Assert(t, errors.Is(err, ErrNotFound))
	})

	t.Run("delete twice", func(t *testing.T) {
		s := newStore(t)
		task := tasks.NewTask("alice", "Buy milk", nil)
		require.NoError(t, s.Put(ctx, task))

		require.NoError(t, s.Delete(ctx, task.ID))
		err := s.Delete(ctx, task.ID)
		assert.Assert(t, errors.Is(err, ErrNotFound))

		_, err = s.Get(ctx, task.ID)
		assert.Assert(t, errors.Is(err, ErrNotFound))
	})

	t.Run("concurrent updates on one id are not lost", func(t *testing.T) {
		s := newStore(t)
		task := tasks.NewTask("alice", "t", nil)
		require.NoError(t, s.Put(ctx, task))

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func(done bool) {
				defer wg.Done()
				if _, err := s.Update(ctx, task.ID, tasks.Patch{Completed: tasks.Ptr(done)}); err != nil {
					t.Errorf("concurrent update: %v", err)
				}
			}(i%2 == 0)
		}
		wg.Wait()

		_, err := s.Update(ctx, task.ID, tasks.Patch{Completed: tasks.Ptr(true)})
		require.NoError(t, err)
		got, err := s.Get(ctx, task.ID)
		require.NoError(t, err)
		assert.Assert(t, got.Completed)
	})
}

func ids(list []*tasks.Task) []string {
	out := make([]string, len(list))
	for i, task := range list {
		out[i] = task.ID
	}
	return out
}
