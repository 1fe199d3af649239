package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskchat/tasks"
)

const maxTxRetries = 10

var _ TaskStore = (*RedisTaskStore)(nil)

// RedisTaskStore persists each task as a JSON value.
//
// Keys under prefix:
//
//	<prefix>:task:<id>   task JSON
//	<prefix>:tasks       ZSET of live ids scored by insertion sequence
//	<prefix>:seq         insertion sequence counter
//	<prefix>:retired     SET of deleted ids
//
// Writes are WATCH/MULTI transactions on the task key, which serializes them per id.
type RedisTaskStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisTaskStore connects to url and verifies the connection.
func NewRedisTaskStore(url, prefix string) (*RedisTaskStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTaskStoreFromClient(client, prefix), nil
}

// NewRedisTaskStoreFromClient wraps an existing client.
func NewRedisTaskStoreFromClient(client *redis.Client, prefix string) *RedisTaskStore {
	return &RedisTaskStore{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisTaskStore) taskKey(id string) string { return s.prefix + ":task:" + id }
func (s *RedisTaskStore) orderKey() string         { return s.prefix + ":tasks" }
func (s *RedisTaskStore) seqKey() string           { return s.prefix + ":seq" }
func (s *RedisTaskStore) retiredKey() string       { return s.prefix + ":retired" }

// withRetry reruns fn while a watched key changed under it.
func (s *RedisTaskStore) withRetry(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %v: too much contention", keys)
}

func (s *RedisTaskStore) Put(ctx context.Context, task *tasks.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	key := s.taskKey(task.ID)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		retired, err := tx.SIsMember(ctx, s.retiredKey(), task.ID).Result()
		if err != nil {
			return err
		}
		if exists > 0 || retired {
			return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateID)
		}

		seq, err := tx.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.orderKey(), redis.Z{Score: float64(seq), Member: task.ID})
			return nil
		})
		return err
	}, key, s.retiredKey())
}

func decodeTask(raw string) (*tasks.Task, error) {
	var task tasks.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

func (s *RedisTaskStore) Get(ctx context.Context, id string) (*tasks.Task, error) {
	raw, err := s.client.Get(ctx, s.taskKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return decodeTask(raw)
}

// List reads the order index and then every task with one MGET, which Redis executes atomically.
func (s *RedisTaskStore) List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error) {
	ids, err := s.IDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*tasks.Task{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.taskKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	result := make([]*tasks.Task, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between ZRANGE and MGET
			continue
		}
		task, err := decodeTask(raw)
		if err != nil {
			return nil, err
		}
		if filter.Matches(task) {
			result = append(result, task)
		}
	}
	return result, nil
}

func (s *RedisTaskStore) Update(ctx context.Context, id string, patch tasks.Patch) (*tasks.Task, error) {
	key := s.taskKey(id)

	var updated *tasks.Task
	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		task, err := decodeTask(raw)
		if err != nil {
			return err
		}
		patch.Apply(task, s.now())

		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = task
		}
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RedisTaskStore) Delete(ctx context.Context, id string) error {
	key := s.taskKey(id)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.orderKey(), id)
			pipe.SAdd(ctx, s.retiredKey(), id)
			return nil
		})
		return err
	}, key)
}

func (s *RedisTaskStore) IDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	return ids, nil
}

func (s *RedisTaskStore) Close() error {
	return s.client.Close()
}
