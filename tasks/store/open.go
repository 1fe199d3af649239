package store

import (
	"context"
	"fmt"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Options selects and configures a TaskStore backend.
type Options struct {
	Backend     string
	RedisURL    string
	RedisPrefix string
	DatabaseURL string
	SQLitePath  string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (TaskStore, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryTaskStore(), nil
	case BackendRedis:
		return NewRedisTaskStore(opts.RedisURL, opts.RedisPrefix)
	case BackendPostgres:
		return NewPostgresTaskStore(ctx, opts.DatabaseURL)
	case BackendSQLite:
		return NewSQLiteTaskStore(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
