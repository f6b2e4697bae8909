package store

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/abatilo/tasktree/internal/deps"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

// Create saves a new task. It fails with AlreadyExistsError if the path is taken.
func (s *Store) Create(ctx context.Context, in task.CreateTaskInput) (*task.Task, error) {
	t := in.Task()
	if err := task.ValidatePath(t.Path, s.limits.MaxPathDepth); err != nil {
		return nil, err
	}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	existing, err := s.lookup(ctx, t.Path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, treeerrors.AlreadyExistsError{Path: t.Path}
	}
	saved, err := s.Save(ctx, []*task.Task{t})
	if err != nil {
		return nil, err
	}
	return saved[0], nil
}

// Update applies in to the task at path and saves it.
func (s *Store) Update(ctx context.Context, path string, in task.UpdateTaskInput) (*task.Task, error) {
	cur, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	saved, err := s.Save(ctx, []*task.Task{in.Apply(cur)})
	if err != nil {
		return nil, err
	}
	return saved[0], nil
}

// Save validates and persists tasks as one unit: either every task (plus the
// parents whose subtask lists change and the dependents whose status
// propagates) is written, or nothing is. Subtasks, Created, Updated and
// Version are assigned by the store; values supplied for them are ignored.
// The returned tasks reflect what was stored.
func (s *Store) Save(ctx context.Context, tasks []*task.Task) ([]*task.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	batch := task.CloneAll(tasks)
	seen := make(map[string]struct{}, len(batch))
	for _, t := range batch {
		if err := s.limits.Validate(t); err != nil {
			return nil, err
		}
		if _, dup := seen[t.Path]; dup {
			return nil, treeerrors.InvalidFieldError{Path: t.Path, Field: "path", Reason: "appears more than once in the batch"}
		}
		seen[t.Path] = struct{}{}
	}

	prior := make(map[string]*task.Task, len(batch))
	for _, t := range batch {
		p, err := s.lookup(ctx, t.Path)
		if err != nil {
			return nil, err
		}
		prior[t.Path] = p
	}

	inBatch := make(map[string]*task.Task, len(batch))
	for _, t := range batch {
		inBatch[t.Path] = t
	}
	resolve := deps.Overlay(batch, s.lookup)

	if err := s.checkHierarchy(ctx, batch, inBatch, resolve); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateBatch(ctx, batch, s.lookup); err != nil {
		return nil, err
	}
	// From here on the validator has memoized the batch; forget it on rejection.
	reject := func(err error) ([]*task.Task, error) {
		for _, t := range batch {
			s.validator.Forget(t.Path)
		}
		return nil, err
	}
	for _, t := range batch {
		p := prior[t.Path]
		if p != nil && p.Status == t.Status && slices.Equal(p.Dependencies, t.Dependencies) {
			continue
		}
		from := t.Clone()
		from.Status = ""
		if p != nil {
			from.Status = p.Status
		}
		if err := s.validator.ValidateStatusTransition(ctx, from, t.Status, resolve); err != nil {
			return reject(err)
		}
	}

	now := s.now().UTC()
	var seeds []string
	for _, t := range batch {
		p := prior[t.Path]
		t.Updated = now
		t.Subtasks = nil
		if p == nil {
			t.Created = now
			t.Version = 1
			seeds = append(seeds, t.Path)
			continue
		}
		t.Created = p.Created
		t.Version = p.Version + 1
		t.Subtasks = slices.Clone(p.Subtasks)
		if p.Status != t.Status {
			seeds = append(seeds, t.Path)
			if t.Status != task.StatusBlocked {
				t.Metadata.BlockedBy = nil
				t.Metadata.BlockedReason = ""
			}
		}
	}

	parents, err := s.relinkParents(ctx, batch, prior, inBatch, now)
	if err != nil {
		return reject(err)
	}

	written := slices.Clone(batch)
	before := make(map[string]*task.Task, len(batch)+len(parents))
	for path, p := range prior {
		before[path] = p
	}
	for _, p := range parents {
		before[p.next.Path] = p.prior
		written = append(written, p.next)
	}
	task.SortByPath(written)

	tx := s.txns.Begin()
	paths := sortedPaths(before)
	tx.MarkPersisted(tx.RecordSave(before))
	if err := s.backend.SaveTasks(ctx, written); err != nil {
		return nil, s.fail(ctx, tx, treeerrors.StorageError{Op: "save", Err: err}, paths)
	}
	for _, t := range written {
		s.backfill(t)
	}

	known := make(map[string]*task.Task, len(written))
	for _, t := range written {
		known[t.Path] = t
	}
	if err := s.propagate(ctx, tx, seeds, known, nil, now); err != nil {
		return nil, s.fail(ctx, tx, err, paths)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	// A memoized result only holds for the graph it was computed on.
	if edgesChanged(batch, prior) {
		s.validator.Reset()
	}

	s.logger.Debug("tasks saved", zap.String("tx", tx.ID), zap.Strings("paths", paths))
	out := make([]*task.Task, len(batch))
	for i, t := range batch {
		out[i] = known[t.Path].Clone()
	}
	return out, nil
}

// checkHierarchy verifies that every parent exists and may contain its child,
// and that a task whose type changes may still contain its children.
func (s *Store) checkHierarchy(ctx context.Context, batch []*task.Task, inBatch map[string]*task.Task, resolve deps.Resolver) error {
	for _, t := range batch {
		if t.ParentPath != "" {
			parent, err := resolve(ctx, t.ParentPath)
			if err != nil {
				return err
			}
			if parent == nil {
				return treeerrors.InvalidParentError{Path: t.Path, ParentPath: t.ParentPath, Reason: "parent does not exist"}
			}
			if !task.CanContain(parent.Type, t.Type) {
				return treeerrors.InvalidHierarchyError{
					Path:       t.Path,
					Type:       string(t.Type),
					ParentPath: parent.Path,
					ParentType: string(parent.Type),
				}
			}
		}

		for _, childPath := range s.index.ChildPaths(t.Path) {
			child, ok := inBatch[childPath]
			if !ok {
				ref, found := s.index.Lookup(childPath)
				if !found {
					continue
				}
				child = &task.Task{Path: ref.Path, Type: ref.Type}
			}
			if child.ParentPath == "" && ok {
				continue
			}
			if !task.CanContain(t.Type, child.Type) {
				return treeerrors.InvalidHierarchyError{
					Path:       child.Path,
					Type:       string(child.Type),
					ParentPath: t.Path,
					ParentType: string(t.Type),
				}
			}
		}
	}
	return nil
}

type parentEdit struct {
	prior *task.Task
	next  *task.Task
}

// relinkParents adds new children to their parent's subtask list and removes
// children that left. Parents inside the batch are edited in place; parents
// outside it are returned as extra writes with their version bumped.
func (s *Store) relinkParents(ctx context.Context, batch []*task.Task, prior, inBatch map[string]*task.Task, now time.Time) ([]parentEdit, error) {
	edits := make(map[string]*parentEdit)
	target := func(path string) (*task.Task, error) {
		if t, ok := inBatch[path]; ok {
			return t, nil
		}
		if e, ok := edits[path]; ok {
			return e.next, nil
		}
		p, err := s.lookup(ctx, path)
		if err != nil || p == nil {
			return nil, err
		}
		next := p.Clone()
		next.Version++
		next.Updated = now
		edits[path] = &parentEdit{prior: p, next: next}
		return next, nil
	}

	for _, t := range batch {
		oldParent := ""
		if p := prior[t.Path]; p != nil {
			oldParent = p.ParentPath
		}
		if oldParent == t.ParentPath {
			continue
		}
		if oldParent != "" {
			parent, err := target(oldParent)
			if err != nil {
				return nil, err
			}
			if parent != nil {
				parent.Subtasks = slices.DeleteFunc(parent.Subtasks, func(p string) bool { return p == t.Path })
			}
		}
		if t.ParentPath != "" {
			parent, err := target(t.ParentPath)
			if err != nil {
				return nil, err
			}
			if parent != nil && !slices.Contains(parent.Subtasks, t.Path) {
				parent.Subtasks = append(parent.Subtasks, t.Path)
				slices.Sort(parent.Subtasks)
			}
		}
	}

	out := make([]parentEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, *e)
	}
	return out, nil
}

func sortedPaths(m map[string]*task.Task) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// edgesChanged reports whether saving batch over prior adds or removes any
// dependency edge.
func edgesChanged(batch []*task.Task, prior map[string]*task.Task) bool {
	for _, t := range batch {
		p := prior[t.Path]
		if p == nil {
			if len(t.Dependencies) > 0 {
				return true
			}
			continue
		}
		if !slices.Equal(p.Dependencies, t.Dependencies) {
			return true
		}
	}
	return false
}
