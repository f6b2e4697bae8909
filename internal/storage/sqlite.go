package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

//go:embed schema.sql
var sqliteSchema string

// SQLite stores tasks as JSON rows in a single SQLite table.
type SQLite struct {
	db *sql.DB
}

var _ Backend = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at dbPath and applies the schema.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", dbPath, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) GetTask(ctx context.Context, path string) (*task.Task, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM tasks WHERE path = ?`, path).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, treeerrors.TaskNotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", path, err)
	}
	return decodeTask(body)
}

// SaveTasks upserts every task inside one SQL transaction.
func (s *SQLite) SaveTasks(ctx context.Context, tasks []*task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tasks (path, parent_path, status, body, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
    parent_path = excluded.parent_path,
    status      = excluded.status,
    body        = excluded.body,
    updated_at  = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		body, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", t.Path, err)
		}
		if _, err := stmt.ExecContext(ctx, t.Path, t.ParentPath, string(t.Status), body, t.Updated.UTC()); err != nil {
			return fmt.Errorf("save task %s: %w", t.Path, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) DeleteTasks(ctx context.Context, paths []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range paths {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE path = ?`, p); err != nil {
			return fmt.Errorf("delete task %s: %w", p, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) GetTasksByPattern(ctx context.Context, pattern string) ([]*task.Task, error) {
	p, err := task.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	// LIKE narrows by prefix (case-insensitively); matching applies the exact rule.
	tasks, err := s.query(ctx, `SELECT body FROM tasks WHERE path LIKE ? ESCAPE '\'`, likePrefix(p.Prefix()))
	if err != nil {
		return nil, err
	}
	return matching(tasks, p), nil
}

func (s *SQLite) GetTasksByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	return s.query(ctx, `SELECT body FROM tasks WHERE status = ?`, string(status))
}

func (s *SQLite) GetSubtasks(ctx context.Context, parentPath string) ([]*task.Task, error) {
	return s.query(ctx, `SELECT body FROM tasks WHERE parent_path = ?`, parentPath)
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t, err := decodeTask(body)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	task.SortByPath(tasks)
	return tasks, nil
}

func decodeTask(body []byte) (*task.Task, error) {
	var t task.Task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decoding task body: %w", err)
	}
	return &t, nil
}
