package storage

import (
	"context"
	"sync"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

// Memory keeps tasks in a map. Nothing survives Close.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]*task.Task)}
}

func (m *Memory) GetTask(ctx context.Context, path string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[path]
	if !ok {
		return nil, treeerrors.TaskNotFoundError{Path: path}
	}
	return t.Clone(), nil
}

func (m *Memory) SaveTasks(ctx context.Context, tasks []*task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		m.tasks[t.Path] = t.Clone()
	}
	return nil
}

func (m *Memory) DeleteTasks(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.tasks, p)
	}
	return nil
}

func (m *Memory) GetTasksByPattern(ctx context.Context, pattern string) ([]*task.Task, error) {
	p, err := task.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return m.filter(ctx, func(t *task.Task) bool { return p.Match(t.Path) })
}

func (m *Memory) GetTasksByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	return m.filter(ctx, func(t *task.Task) bool { return t.Status == status })
}

func (m *Memory) GetSubtasks(ctx context.Context, parentPath string) ([]*task.Task, error) {
	return m.filter(ctx, func(t *task.Task) bool { return t.ParentPath == parentPath })
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) filter(ctx context.Context, keep func(*task.Task) bool) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*task.Task
	for _, t := range m.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	task.SortByPath(out)
	return out, nil
}
