package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"taskchat/chat"
)

const maxTxRetries = 10

var _ chat.ConversationStore = (*RedisStore)(nil)

// RedisStore keeps conversations in Redis so they survive restarts and can be
// shared between replicas.
//
// Keys under prefix:
//
//	<prefix>:conv:<id>           HASH owner, focus, created_at, updated_at
//	<prefix>:conv:<id>:history   LIST of message JSON, oldest first
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) metaKey(id string) string    { return s.prefix + ":conv:" + id }
func (s *RedisStore) historyKey(id string) string { return s.prefix + ":conv:" + id + ":history" }

func (s *RedisStore) Create(ctx context.Context, owner string) (*chat.Conversation, error) {
	now := time.Now().UTC()
	conv := &chat.Conversation{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.client.HSet(ctx, s.metaKey(conv.ID),
		"owner", owner,
		"focus", "",
		"created_at", now.Format(time.RFC3339Nano),
		"updated_at", now.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	var (
		meta    *redis.MapStringStringCmd
		history *redis.StringSliceCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		meta = pipe.HGetAll(ctx, s.metaKey(id))
		history = pipe.LRange(ctx, s.historyKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	fields := meta.Val()
	if len(fields) == 0 {
		return nil, chat.ErrConversationNotFound
	}

	conv := &chat.Conversation{
		ID:    id,
		Owner: fields["owner"],
		Focus: fields["focus"],
	}
	conv.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	conv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])

	for _, raw := range history.Val() {
		var msg chat.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		conv.History = append(conv.History, msg)
	}
	return conv, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}

	values := make([]any, len(messages))
	for i, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values[i] = data
	}

	return s.touch(ctx, id, func(pipe redis.Pipeliner) {
		pipe.RPush(ctx, s.historyKey(id), values...)
	})
}

func (s *RedisStore) SetFocus(ctx context.Context, id, taskID string) error {
	return s.touch(ctx, id, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, s.metaKey(id), "focus", taskID)
	})
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// touch runs write inside a transaction guarded by the conversation's existence.
func (s *RedisStore) touch(ctx context.Context, id string, write func(redis.Pipeliner)) error {
	key := s.metaKey(id)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return chat.ErrConversationNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			pipe.HSet(ctx, key, "updated_at", time.Now().UTC().Format(time.RFC3339Nano))
			return nil
		})
		return err
	}

	var err error
	for range maxTxRetries {
		if err = s.client.Watch(ctx, txf, key); !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, chat.ErrConversationNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update conversation %s: %w", id, err)
	}
	return nil
}
