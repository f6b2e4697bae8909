// Package txn records the effects of a store mutation so they can be undone.
//
// A transaction is a log of operations. Each operation lists the paths it
// touched and their prior bodies (nil when the path did not exist). Rolling
// back walks the log in reverse: index entries go back to their prior state,
// cache entries are dropped, and backing-store writes that already happened
// are compensated by writing the prior bodies back.
package txn

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/abatilo/tasktree/internal/cache"
	"github.com/abatilo/tasktree/internal/index"
	"github.com/abatilo/tasktree/internal/logging"
	"github.com/abatilo/tasktree/internal/storage"
	"github.com/abatilo/tasktree/internal/task"
)

// OpKind names the kind of a recorded operation.
type OpKind string

const (
	OpSave   OpKind = "save"
	OpDelete OpKind = "delete"
	OpClear  OpKind = "clear"
)

// Operation is one entry in a transaction log.
type Operation struct {
	Kind  OpKind
	Paths []string
	// Prior holds the body of each path before the operation; nil means absent.
	Prior map[string]*task.Task
	// Snapshot is the index as it was before a clear.
	Snapshot  index.Snapshot
	Persisted bool
}

type state string

const (
	stateOpen       state = "open"
	stateCommitted  state = "committed"
	stateRolledBack state = "rolled back"
)

// FinishedError indicates Commit or Rollback on a transaction that already ended.
type FinishedError struct {
	ID    string
	State string
}

func (e FinishedError) Error() string {
	return fmt.Sprintf("transaction %s already %s", e.ID, e.State)
}

// Manager hands out transactions over one backend, index and cache.
type Manager struct {
	backend storage.Backend
	index   *index.Manager
	cache   cache.Cache
	logger  *zap.Logger

	mu     sync.Mutex
	active map[string]*Tx
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.OrNop(l).Named("txn")
	}
}

// NewManager creates a transaction manager.
func NewManager(backend storage.Backend, idx *index.Manager, c cache.Cache, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		index:   idx,
		cache:   c,
		logger:  zap.NewNop(),
		active:  make(map[string]*Tx),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin opens a transaction.
func (m *Manager) Begin() *Tx {
	tx := &Tx{ID: uuid.NewString(), m: m, state: stateOpen}
	m.mu.Lock()
	m.active[tx.ID] = tx
	m.mu.Unlock()
	m.logger.Debug("transaction begun", zap.String("tx", tx.ID))
	return tx
}

// Active returns the IDs of transactions that are neither committed nor rolled back.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Manager) finish(tx *Tx) {
	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()
}

// Tx is an open transaction. A Tx is used by one goroutine at a time.
type Tx struct {
	ID    string
	m     *Manager
	ops   []*Operation
	state state
}

// Record appends an operation and returns its position for MarkPersisted.
func (tx *Tx) Record(op Operation) int {
	tx.ops = append(tx.ops, &op)
	return len(tx.ops) - 1
}

// RecordSave records a save over the given prior bodies.
func (tx *Tx) RecordSave(prior map[string]*task.Task) int {
	return tx.Record(Operation{Kind: OpSave, Paths: sortedKeys(prior), Prior: prior})
}

// RecordDelete records a delete of the given prior bodies.
func (tx *Tx) RecordDelete(prior map[string]*task.Task) int {
	return tx.Record(Operation{Kind: OpDelete, Paths: sortedKeys(prior), Prior: prior})
}

// RecordClear records an index and cache wipe.
func (tx *Tx) RecordClear(snap index.Snapshot) int {
	return tx.Record(Operation{Kind: OpClear, Snapshot: snap})
}

// MarkPersisted flags operation i as reaching the backing store. Flag it before
// the write: a write that fails partway may still have landed, and Rollback
// compensates only flagged operations.
func (tx *Tx) MarkPersisted(i int) {
	if i >= 0 && i < len(tx.ops) {
		tx.ops[i].Persisted = true
	}
}

// Operations returns the recorded log.
func (tx *Tx) Operations() []Operation {
	out := make([]Operation, len(tx.ops))
	for i, op := range tx.ops {
		out[i] = *op
	}
	return out
}

// Commit ends the transaction, keeping its effects.
func (tx *Tx) Commit() error {
	if tx.state != stateOpen {
		return FinishedError{ID: tx.ID, State: string(tx.state)}
	}
	tx.state = stateCommitted
	tx.m.finish(tx)
	tx.m.logger.Debug("transaction committed", zap.String("tx", tx.ID), zap.Int("ops", len(tx.ops)))
	return nil
}

// Rollback undoes every recorded operation in reverse order. It keeps going
// after a failed step and returns all failures combined.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.state != stateOpen {
		return FinishedError{ID: tx.ID, State: string(tx.state)}
	}
	tx.state = stateRolledBack
	defer tx.m.finish(tx)

	var errs error
	for i := len(tx.ops) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, tx.undo(ctx, tx.ops[i]))
	}
	if errs != nil {
		tx.m.logger.Error("transaction rollback incomplete", zap.String("tx", tx.ID), zap.Error(errs))
	} else {
		tx.m.logger.Debug("transaction rolled back", zap.String("tx", tx.ID), zap.Int("ops", len(tx.ops)))
	}
	return errs
}

func (tx *Tx) undo(ctx context.Context, op *Operation) error {
	m := tx.m
	if op.Kind == OpClear {
		m.index.Restore(op.Snapshot)
		return nil
	}

	var restore []*task.Task
	var remove []string
	for _, p := range op.Paths {
		m.cache.Delete(p)
		if prior := op.Prior[p]; prior != nil {
			m.index.IndexTask(prior)
			restore = append(restore, prior)
		} else {
			m.index.UnindexTask(p)
			remove = append(remove, p)
		}
	}
	if !op.Persisted {
		return nil
	}

	var errs error
	if len(restore) > 0 {
		if err := m.backend.SaveTasks(ctx, restore); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restoring %d tasks after %s: %w", len(restore), op.Kind, err))
		}
	}
	if len(remove) > 0 {
		if err := m.backend.DeleteTasks(ctx, remove); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("removing %d tasks after %s: %w", len(remove), op.Kind, err))
		}
	}
	return errs
}

func sortedKeys(m map[string]*task.Task) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
