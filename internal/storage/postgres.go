package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

const tasksTable = "tasktree_tasks"

// Postgres stores tasks as JSONB rows.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Backend = (*Postgres)(nil)

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	p := NewPostgres(pool)
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool. Call EnsureSchema before first use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the tasks table and its indexes if they don't exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + tasksTable + ` (
    path        TEXT PRIMARY KEY,
    parent_path TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    body        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasktree_parent ON ` + tasksTable + ` (parent_path)`,
		`CREATE INDEX IF NOT EXISTS idx_tasktree_status ON ` + tasksTable + ` (status)`,
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) GetTask(ctx context.Context, path string) (*task.Task, error) {
	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT body FROM `+tasksTable+` WHERE path = $1`, path).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, treeerrors.TaskNotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", path, err)
	}
	return decodeTask(body)
}

// SaveTasks upserts every task inside one transaction.
func (p *Postgres) SaveTasks(ctx context.Context, tasks []*task.Task) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range tasks {
		body, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", t.Path, err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO `+tasksTable+` (path, parent_path, status, body, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (path) DO UPDATE SET
    parent_path = EXCLUDED.parent_path,
    status      = EXCLUDED.status,
    body        = EXCLUDED.body,
    updated_at  = EXCLUDED.updated_at`,
			t.Path, t.ParentPath, string(t.Status), body, t.Updated.UTC())
		if err != nil {
			return fmt.Errorf("save task %s: %w", t.Path, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) DeleteTasks(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM `+tasksTable+` WHERE path = ANY($1)`, paths); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) GetTasksByPattern(ctx context.Context, pattern string) ([]*task.Task, error) {
	pat, err := task.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	tasks, err := p.query(ctx, `SELECT body FROM `+tasksTable+` WHERE path LIKE $1 ESCAPE '\'`, likePrefix(pat.Prefix()))
	if err != nil {
		return nil, err
	}
	return matching(tasks, pat), nil
}

func (p *Postgres) GetTasksByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	return p.query(ctx, `SELECT body FROM `+tasksTable+` WHERE status = $1`, string(status))
}

func (p *Postgres) GetSubtasks(ctx context.Context, parentPath string) ([]*task.Task, error) {
	return p.query(ctx, `SELECT body FROM `+tasksTable+` WHERE parent_path = $1`, parentPath)
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) query(ctx context.Context, q string, args ...any) ([]*task.Task, error) {
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]*task.Task, error) {
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
