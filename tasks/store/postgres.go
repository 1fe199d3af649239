package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskchat/tasks"
)

const (
	tasksTable   = "tasks"
	retiredTable = "retired_task_ids"

	pgUniqueViolation = "23505"
)

var _ TaskStore = (*PostgresTaskStore)(nil)

// PostgresTaskStore persists tasks in Postgres. Row locks serialize writes per id.
type PostgresTaskStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresTaskStore opens a pool for databaseURL and ensures the schema exists.
func NewPostgresTaskStore(ctx context.Context, databaseURL string) (*PostgresTaskStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	s := &PostgresTaskStore{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tables if they don't exist.
func (s *PostgresTaskStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + tasksTable + ` (
    seq         BIGSERIAL,
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL,
    description TEXT,
    completed   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_seq ON ` + tasksTable + ` (seq)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON ` + tasksTable + ` (owner)`,
		`CREATE TABLE IF NOT EXISTS ` + retiredTable + ` (
    id         TEXT PRIMARY KEY,
    deleted_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

const selectTaskColumns = `SELECT id, owner, title, description, completed, created_at, updated_at FROM ` + tasksTable

func scanPgTask(row pgx.Row) (*tasks.Task, error) {
	var t tasks.Task
	if err := row.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func (s *PostgresTaskStore) Put(ctx context.Context, task *tasks.Task) error {
	// the retired check and insert share one statement so a concurrent delete cannot slip between them
	tag, err := s.pool.Exec(ctx, `
INSERT INTO `+tasksTable+` (id, owner, title, description, completed, created_at, updated_at)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE NOT EXISTS (SELECT 1 FROM `+retiredTable+` WHERE id = $1)`,
		task.ID, task.Owner, task.Title, task.Description, task.Completed, task.CreatedAt, task.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateID)
	}
	return nil
}

func (s *PostgresTaskStore) Get(ctx context.Context, id string) (*tasks.Task, error) {
	task, err := scanPgTask(s.pool.QueryRow(ctx, selectTaskColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresTaskStore) List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error) {
	query := selectTaskColumns
	switch filter {
	case tasks.FilterPending:
		query += ` WHERE completed = FALSE`
	case tasks.FilterCompleted:
		query += ` WHERE completed = TRUE`
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := []*tasks.Task{}
	for rows.Next() {
		task, err := scanPgTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

func (s *PostgresTaskStore) Update(ctx context.Context, id string, patch tasks.Patch) (*tasks.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := scanPgTask(tx.QueryRow(ctx, selectTaskColumns+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task for update: %w", err)
	}

	patch.Apply(task, s.now())

	_, err = tx.Exec(ctx, `
UPDATE `+tasksTable+` SET title = $2, description = $3, completed = $4, updated_at = $5 WHERE id = $1`,
		task.ID, task.Title, task.Description, task.Completed, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return task, nil
}

func (s *PostgresTaskStore) Delete(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM `+tasksTable+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO `+retiredTable+` (id) VALUES ($1) ON CONFLICT DO NOTHING`, id); err != nil {
		return fmt.Errorf("retire task id: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresTaskStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM `+tasksTable+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresTaskStore) Close() error {
	s.pool.Close()
	return nil
}
