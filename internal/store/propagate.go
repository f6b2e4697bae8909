package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abatilo/tasktree/internal/deps"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
	"github.com/abatilo/tasktree/internal/txn"
)

// propagate applies the dependent status changes caused by the seed paths and
// persists them as one more operation in tx. known holds tasks already written
// in tx and is updated with the propagated versions; paths in gone are treated
// as deleted. A task already written in tx keeps the version that write gave
// it, so one call bumps each task once.
func (s *Store) propagate(
	ctx context.Context,
	tx *txn.Tx,
	seeds []string,
	known map[string]*task.Task,
	gone map[string]struct{},
	now time.Time,
) error {
	if len(seeds) == 0 {
		return nil
	}

	written := make(map[string]struct{}, len(known))
	for path := range known {
		written[path] = struct{}{}
	}

	var loadErr error
	lookup := func(path string) (*task.Task, bool) {
		if _, ok := gone[path]; ok {
			return nil, false
		}
		if t, ok := known[path]; ok {
			return t, true
		}
		t, err := s.lookup(ctx, path)
		if err != nil {
			if loadErr == nil {
				loadErr = err
			}
			return nil, false
		}
		if t == nil {
			return nil, false
		}
		known[path] = t
		return t, true
	}

	changes := deps.Propagate(seeds, lookup, s.index.Dependents)
	if loadErr != nil {
		return loadErr
	}
	if len(changes) == 0 {
		return nil
	}

	prior := make(map[string]*task.Task, len(changes))
	updated := make([]*task.Task, 0, len(changes))
	for _, c := range changes {
		base := known[c.Path]
		next := c.Apply(base)
		if _, ok := written[c.Path]; !ok {
			next.Version = base.Version + 1
		}
		next.Updated = now
		prior[c.Path] = base
		updated = append(updated, next)
	}

	tx.MarkPersisted(tx.RecordSave(prior))
	if err := s.backend.SaveTasks(ctx, updated); err != nil {
		return treeerrors.StorageError{Op: "propagate status", Err: err}
	}

	for i, t := range updated {
		s.backfill(t)
		known[t.Path] = t
		c := changes[i]
		s.logger.Info("status propagated",
			zap.String("path", c.Path),
			zap.String("from", string(c.From)),
			zap.String("to", string(c.To)),
			zap.String("reason", c.Reason),
		)
	}
	return nil
}
