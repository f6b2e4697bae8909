package store

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

// Check reads every task from the backing store and reports all violations
// of the dependency and hierarchy rules it finds. Tasks written outside the
// store, such as hand-edited markdown files, can break them.
func (s *Store) Check(ctx context.Context) error {
	all, err := s.backend.GetTasksByPattern(ctx, "")
	if err != nil {
		return treeerrors.StorageError{Op: "check", Err: err}
	}

	errs := s.validator.CheckGraph(ctx, all)

	byPath := make(map[string]*task.Task, len(all))
	children := make(map[string][]string)
	for _, t := range all {
		byPath[t.Path] = t
		if t.ParentPath != "" {
			children[t.ParentPath] = append(children[t.ParentPath], t.Path)
		}
	}
	for _, t := range all {
		if err := s.limits.Validate(t); err != nil {
			errs = multierr.Append(errs, err)
		}
		if t.ParentPath != "" {
			parent, ok := byPath[t.ParentPath]
			switch {
			case !ok:
				errs = multierr.Append(errs, treeerrors.InvalidParentError{Path: t.Path, ParentPath: t.ParentPath, Reason: "parent does not exist"})
			case !task.CanContain(parent.Type, t.Type):
				errs = multierr.Append(errs, treeerrors.InvalidHierarchyError{
					Path:       t.Path,
					Type:       string(t.Type),
					ParentPath: parent.Path,
					ParentType: string(parent.Type),
				})
			}
		}
		want := children[t.Path]
		slices.Sort(want)
		got := slices.Sorted(slices.Values(t.Subtasks))
		if !slices.Equal(want, got) {
			errs = multierr.Append(errs, treeerrors.InvalidFieldError{
				Path:   t.Path,
				Field:  "subtasks",
				Reason: fmt.Sprintf("lists %v but children are %v", got, want),
			})
		}
	}
	return errs
}
