package conversations

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskchat/chat"
)

type memoryConversation struct {
	mu   sync.Mutex
	conv chat.Conversation
}

// MemoryStore keeps conversations in process memory. Lock order is the map lock
// first, then the conversation's own lock.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*memoryConversation
}

var _ chat.ConversationStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*memoryConversation),
	}
}

func (s *MemoryStore) Create(ctx context.Context, owner string) (*chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &memoryConversation{conv: chat.Conversation{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}}

	s.mu.Lock()
	s.conversations[c.conv.ID] = c
	s.mu.Unlock()

	return snapshot(&c.conv), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	c, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(&c.conv), nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, messages ...chat.Message) error {
	c, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conv.History = append(c.conv.History, messages...)
	c.conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetFocus(ctx context.Context, id, taskID string) error {
	c, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conv.Focus = taskID
	c.conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) lookup(ctx context.Context, id string) (*memoryConversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return c, nil
}

func snapshot(c *chat.Conversation) *chat.Conversation {
	out := *c
	out.History = slices.Clone(c.History)
	return &out
}
