package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"taskchat/tasks"
)

var _ TaskStore = (*SQLiteTaskStore)(nil)

// SQLiteTaskStore persists tasks in a local SQLite file.
// The pool is limited to one connection, so every write is serialized.
type SQLiteTaskStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteTaskStore opens (or creates) the database at path. Use ":memory:" for tests.
func NewSQLiteTaskStore(ctx context.Context, path string) (*SQLiteTaskStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteTaskStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteTaskStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    owner       TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL,
    description TEXT,
    completed   INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks (owner)`,
		`CREATE TABLE IF NOT EXISTS retired_task_ids (
    id         TEXT PRIMARY KEY,
    deleted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

const sqliteTaskColumns = `SELECT id, owner, title, description, completed, created_at, updated_at FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row rowScanner) (*tasks.Task, error) {
	var (
		t    tasks.Task
		desc sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Owner, &t.Title, &desc, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *SQLiteTaskStore) Put(ctx context.Context, task *tasks.Task) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (id, owner, title, description, completed, created_at, updated_at)
SELECT ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM retired_task_ids WHERE id = ?)`,
		task.ID, task.Owner, task.Title, nullable(task.Description), task.Completed, task.CreatedAt, task.UpdatedAt, task.ID,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicateID)
	}
	return nil
}

func (s *SQLiteTaskStore) Get(ctx context.Context, id string) (*tasks.Task, error) {
	task, err := scanSQLiteTask(s.db.QueryRowContext(ctx, sqliteTaskColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *SQLiteTaskStore) List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error) {
	query := sqliteTaskColumns
	switch filter {
	case tasks.FilterPending:
		query += ` WHERE completed = 0`
	case tasks.FilterCompleted:
		query += ` WHERE completed = 1`
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := []*tasks.Task{}
	for rows.Next() {
		task, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

func (s *SQLiteTaskStore) Update(ctx context.Context, id string, patch tasks.Patch) (*tasks.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	task, err := scanSQLiteTask(tx.QueryRowContext(ctx, sqliteTaskColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task for update: %w", err)
	}

	patch.Apply(task, s.now())

	_, err = tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, completed = ?, updated_at = ? WHERE id = ?`,
		task.Title, nullable(task.Description), task.Completed, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return task, nil
}

func (s *SQLiteTaskStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO retired_task_ids (id) VALUES (?)`, id); err != nil {
		return fmt.Errorf("retire task id: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteTaskStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteTaskStore) Close() error {
	return s.db.Close()
}
