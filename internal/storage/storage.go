// Package storage defines the backing-store contract the task store persists
// through, and its memory, markdown-file, SQLite and Postgres implementations.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/abatilo/tasktree/internal/config"
	"github.com/abatilo/tasktree/internal/task"
)

// Backend is a durable task store. Implementations must be safe for
// concurrent use. GetTask returns errors.TaskNotFoundError for a missing
// path; DeleteTasks ignores paths that do not exist. List results are
// sorted by path.
type Backend interface {
	GetTask(ctx context.Context, path string) (*task.Task, error)
	SaveTasks(ctx context.Context, tasks []*task.Task) error
	DeleteTasks(ctx context.Context, paths []string) error
	GetTasksByPattern(ctx context.Context, pattern string) ([]*task.Task, error)
	GetTasksByStatus(ctx context.Context, status task.Status) ([]*task.Task, error)
	GetSubtasks(ctx context.Context, parentPath string) ([]*task.Task, error)
	Close() error
}

// Open builds the backend selected by cfg.Kind.
func Open(ctx context.Context, cfg config.BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case config.BackendMemory, "":
		return NewMemory(), nil
	case config.BackendMarkdown:
		m := NewMarkdown(cfg.Path)
		if !m.IsInitialized() {
			return nil, NotInitializedError{Path: cfg.Path}
		}
		return m, nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// Init prepares the configured backend for first use: the markdown directory
// is created, database schemas are applied.
func Init(ctx context.Context, cfg config.BackendConfig, force bool) error {
	if cfg.Kind == config.BackendMarkdown {
		return NewMarkdown(cfg.Path).Init(force)
	}
	b, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	return b.Close()
}

// likePrefix escapes a literal prefix for use in a LIKE ... ESCAPE '\' clause.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// matching keeps the tasks whose path matches p, sorted by path.
func matching(tasks []*task.Task, p *task.Pattern) []*task.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if p.Match(t.Path) {
			out = append(out, t)
		}
	}
	task.SortByPath(out)
	return out
}
