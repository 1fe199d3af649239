package conversations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskchat/chat"
)

func msg(role chat.Role, content string) chat.Message {
	return chat.Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

func runContractTests(t *testing.T, newStore func(t *testing.T) chat.ConversationStore) {
	t.Run("create then get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv, err := s.Create(ctx, "alice")
		require.NoError(t, err)
		require.NotEmpty(t, conv.ID)

		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Owner)
		assert.Empty(t, got.History)
		assert.Empty(t, got.Focus)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, chat.ErrConversationNotFound)
		assert.ErrorIs(t, s.Append(ctx, "missing", msg(chat.RoleUser, "hi")), chat.ErrConversationNotFound)
		assert.ErrorIs(t, s.SetFocus(ctx, "missing", "t1"), chat.ErrConversationNotFound)
	})

	t.Run("history keeps append order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv, err := s.Create(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, s.Append(ctx, conv.ID, msg(chat.RoleUser, "one")))
		require.NoError(t, s.Append(ctx, conv.ID, msg(chat.RoleAssistant, "two"), msg(chat.RoleUser, "three")))

		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, got.History, 3)
		assert.Equal(t, "one", got.History[0].Content)
		assert.Equal(t, chat.RoleAssistant, got.History[1].Role)
		assert.Equal(t, "three", got.History[2].Content)
	})

	t.Run("focus set and cleared", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv, err := s.Create(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, s.SetFocus(ctx, conv.ID, "task-1"))
		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "task-1", got.Focus)

		require.NoError(t, s.SetFocus(ctx, conv.ID, ""))
		got, err = s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Focus)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv, err := s.Create(ctx, "alice")
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, conv.ID, msg(chat.RoleUser, "original")))

		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		got.History[0].Content = "mutated"

		again, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "original", again.History[0].Content)
	})

	t.Run("concurrent appends are all kept", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv, err := s.Create(ctx, "alice")
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Append(ctx, conv.ID, msg(chat.RoleUser, fmt.Sprintf("m%d", i))); err != nil {
					t.Errorf("append %d: %v", i, err)
				}
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Len(t, got.History, n)
	})
}
