package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/index"
	"github.com/abatilo/tasktree/internal/task"
)

// GetByPattern returns the tasks whose path matches pattern: a raw prefix, or
// a glob when pattern contains glob metacharacters.
func (s *Store) GetByPattern(ctx context.Context, pattern string) ([]*task.Task, error) {
	p, err := task.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if s.index.Complete() {
		return s.fetch(ctx, refPaths(s.index.ByPattern(p)))
	}
	tasks, err := s.backend.GetTasksByPattern(ctx, pattern)
	if err != nil {
		return nil, treeerrors.StorageError{Op: "query pattern " + pattern, Err: err}
	}
	return s.backfillAll(tasks), nil
}

// GetByStatus returns the tasks in status.
func (s *Store) GetByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	if !task.IsValidStatus(status, true) {
		return nil, treeerrors.InvalidFieldError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if s.index.Complete() {
		return s.fetch(ctx, refPaths(s.index.ByStatus(status)))
	}
	tasks, err := s.backend.GetTasksByStatus(ctx, status)
	if err != nil {
		return nil, treeerrors.StorageError{Op: "query status " + string(status), Err: err}
	}
	return s.backfillAll(tasks), nil
}

// GetSubtasks returns the direct children of parentPath.
func (s *Store) GetSubtasks(ctx context.Context, parentPath string) ([]*task.Task, error) {
	if err := task.ValidatePath(parentPath, s.limits.MaxPathDepth); err != nil {
		return nil, err
	}
	if s.index.Complete() {
		return s.fetch(ctx, s.index.ChildPaths(parentPath))
	}
	tasks, err := s.backend.GetSubtasks(ctx, parentPath)
	if err != nil {
		return nil, treeerrors.StorageError{Op: "query subtasks of " + parentPath, Err: err}
	}
	return s.backfillAll(tasks), nil
}

func (s *Store) backfillAll(tasks []*task.Task) []*task.Task {
	for _, t := range tasks {
		s.backfill(t)
	}
	task.SortByPath(tasks)
	return tasks
}

// fetch returns the tasks at paths in path order. Cached tasks are served
// directly; the rest are read from the backing store ChunkSize at a time.
// Paths that no longer exist in the backing store are dropped from the index.
func (s *Store) fetch(ctx context.Context, paths []string) ([]*task.Task, error) {
	out := make([]*task.Task, len(paths))
	var missing []int
	for i, p := range paths {
		if t, ok := s.cache.Get(p); ok {
			out[i] = t
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += s.chunkSize {
		chunk := missing[start:min(start+s.chunkSize, len(missing))]
		g, gctx := errgroup.WithContext(ctx)
		for _, i := range chunk {
			g.Go(func() error {
				t, err := s.backend.GetTask(gctx, paths[i])
				if treeerrors.IsNotFound(err) {
					s.index.UnindexTask(paths[i])
					return nil
				}
				if err != nil {
					return treeerrors.StorageError{Op: "get " + paths[i], Err: err}
				}
				s.backfill(t)
				out[i] = t
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result := out[:0]
	for _, t := range out {
		if t != nil {
			result = append(result, t)
		}
	}
	return result, nil
}

func refPaths(refs []index.Ref) []string {
	paths := make([]string, len(refs))
	for i, r := range refs {
		paths[i] = r.Path
	}
	return paths
}
