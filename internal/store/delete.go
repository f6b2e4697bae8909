package store

import (
	"context"
	"slices"

	"go.uber.org/zap"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

// Delete removes the task at path together with its subtask subtree.
//
// It is refused while any dependent outside the subtree is IN_PROGRESS.
// Remaining dependents keep their now-dangling dependency and are blocked
// through propagation. The parent's subtask list loses the path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := task.ValidatePath(path, s.limits.MaxPathDepth); err != nil {
		return err
	}
	if err := s.ensureIndex(ctx); err != nil {
		return err
	}
	root, err := s.load(ctx, path)
	if err != nil {
		return err
	}

	doomed, err := s.subtree(ctx, root)
	if err != nil {
		return err
	}
	gone := make(map[string]struct{}, len(doomed))
	for p := range doomed {
		gone[p] = struct{}{}
	}

	var dependents []*task.Task
	seen := make(map[string]struct{})
	for p := range doomed {
		for _, d := range s.index.Dependents(p) {
			if _, inside := gone[d]; inside {
				continue
			}
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			t, err := s.lookup(ctx, d)
			if err != nil {
				return err
			}
			if t != nil {
				dependents = append(dependents, t)
			}
		}
	}
	if err := s.validator.ValidateDeletion(path, dependents); err != nil {
		return err
	}

	now := s.now().UTC()
	paths := sortedPaths(doomed)
	tx := s.txns.Begin()

	tx.MarkPersisted(tx.RecordDelete(doomed))
	if err := s.backend.DeleteTasks(ctx, paths); err != nil {
		return s.fail(ctx, tx, treeerrors.StorageError{Op: "delete", Err: err}, nil)
	}
	for _, p := range paths {
		s.index.UnindexTask(p)
		s.cache.Delete(p)
	}

	known := make(map[string]*task.Task)
	if root.ParentPath != "" {
		parent, err := s.lookup(ctx, root.ParentPath)
		if err != nil {
			return s.fail(ctx, tx, err, nil)
		}
		if parent != nil && slices.Contains(parent.Subtasks, path) {
			next := parent.Clone()
			next.Subtasks = slices.DeleteFunc(next.Subtasks, func(p string) bool { return p == path })
			next.Version++
			next.Updated = now
			tx.MarkPersisted(tx.RecordSave(map[string]*task.Task{parent.Path: parent}))
			if err := s.backend.SaveTasks(ctx, []*task.Task{next}); err != nil {
				return s.fail(ctx, tx, treeerrors.StorageError{Op: "save parent", Err: err}, nil)
			}
			s.backfill(next)
			known[next.Path] = next
		}
	}

	if err := s.propagate(ctx, tx, paths, known, gone, now); err != nil {
		return s.fail(ctx, tx, err, nil)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.validator.Reset()
	s.logger.Debug("tasks deleted", zap.String("tx", tx.ID), zap.Strings("paths", paths))
	return nil
}

// subtree returns root and every task below it, keyed by path.
func (s *Store) subtree(ctx context.Context, root *task.Task) (map[string]*task.Task, error) {
	out := map[string]*task.Task{root.Path: root}
	queue := []*task.Task{root}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		children := slices.Clone(t.Subtasks)
		for _, c := range s.index.ChildPaths(t.Path) {
			if !slices.Contains(children, c) {
				children = append(children, c)
			}
		}
		for _, c := range children {
			if _, ok := out[c]; ok {
				continue
			}
			child, err := s.lookup(ctx, c)
			if err != nil {
				return nil, err
			}
			if child == nil {
				continue
			}
			out[c] = child
			queue = append(queue, child)
		}
	}
	return out, nil
}
