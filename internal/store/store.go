// Package store orchestrates task persistence. It validates mutations, keeps
// the index and cache in step with the backing store through transactions,
// and propagates status changes to dependent tasks.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abatilo/tasktree/internal/cache"
	"github.com/abatilo/tasktree/internal/config"
	"github.com/abatilo/tasktree/internal/deps"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/index"
	"github.com/abatilo/tasktree/internal/logging"
	"github.com/abatilo/tasktree/internal/storage"
	"github.com/abatilo/tasktree/internal/task"
	"github.com/abatilo/tasktree/internal/txn"
)

// Store is the task store. It is safe for concurrent use; concurrent writes
// to the same path are last-write-wins at the backing store.
type Store struct {
	backend   storage.Backend
	validator *deps.Validator
	index     *index.Manager
	cache     cache.Cache
	txns      *txn.Manager
	limits    task.Limits
	chunkSize int
	logger    *zap.Logger
	now       func() time.Time

	warmMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithValidator sets the dependency validator.
func WithValidator(v *deps.Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithIndex sets the index manager.
func WithIndex(m *index.Manager) Option {
	return func(s *Store) { s.index = m }
}

// WithCache sets the task cache.
func WithCache(c cache.Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithTransactions sets the transaction manager. It must share the store's
// backend, index and cache.
func WithTransactions(m *txn.Manager) Option {
	return func(s *Store) { s.txns = m }
}

// WithLimits sets the task field limits.
func WithLimits(l task.Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithChunkSize sets how many backing-store reads a bulk fetch issues at once.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l).Named("store") }
}

// WithClock overrides the time source for Created and Updated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store over backend. Components not supplied through options
// are built from the default configuration.
func New(backend storage.Backend, opts ...Option) (*Store, error) {
	defaults := config.Default()
	s := &Store{
		backend:   backend,
		limits:    defaults.Task,
		chunkSize: defaults.Store.ChunkSize,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.validator == nil {
		s.validator = deps.NewValidator(defaults.Deps, deps.WithLogger(s.logger))
	}
	if s.index == nil {
		s.index = index.New()
	}
	if s.cache == nil {
		c, err := cache.New(defaults.Cache)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	if s.txns == nil {
		s.txns = txn.NewManager(backend, s.index, s.cache, txn.WithLogger(s.logger))
	}
	return s, nil
}

// Open builds a store and every component from cfg, opening the configured
// backend. When cfg.Store.WarmOnOpen is set the index is loaded eagerly.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	backend, err := storage.Open(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(cfg.Cache)
	if err != nil {
		backend.Close()
		return nil, err
	}
	idx := index.New()
	s, err := New(backend,
		WithLogger(logger),
		WithLimits(cfg.Task),
		WithChunkSize(cfg.Store.ChunkSize),
		WithIndex(idx),
		WithCache(c),
		WithValidator(deps.NewValidator(cfg.Deps, deps.WithLogger(logger))),
		WithTransactions(txn.NewManager(backend, idx, c, txn.WithLogger(logger))),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if cfg.Store.WarmOnOpen {
		if err := s.Warm(ctx); err != nil {
			backend.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the backing store.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Get returns the task at path: from cache, then the index, then the backing
// store. A backing-store hit is back-filled into index and cache.
func (s *Store) Get(ctx context.Context, path string) (*task.Task, error) {
	if err := task.ValidatePath(path, s.limits.MaxPathDepth); err != nil {
		return nil, err
	}
	return s.load(ctx, path)
}

func (s *Store) load(ctx context.Context, path string) (*task.Task, error) {
	if t, ok := s.cache.Get(path); ok {
		return t, nil
	}
	if s.index.Complete() {
		if _, ok := s.index.Lookup(path); !ok {
			return nil, treeerrors.TaskNotFoundError{Path: path}
		}
	}
	t, err := s.backend.GetTask(ctx, path)
	if err != nil {
		if treeerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, treeerrors.StorageError{Op: "get " + path, Err: err}
	}
	s.backfill(t)
	return t, nil
}

// lookup is load with a missing task reported as nil.
func (s *Store) lookup(ctx context.Context, path string) (*task.Task, error) {
	t, err := s.load(ctx, path)
	if treeerrors.IsNotFound(err) {
		return nil, nil
	}
	return t, err
}

func (s *Store) backfill(t *task.Task) {
	s.index.IndexTask(t)
	s.cache.Set(t)
}

// Warm loads every task identity from the backing store into the index and
// marks the index complete.
func (s *Store) Warm(ctx context.Context) error {
	s.warmMu.Lock()
	defer s.warmMu.Unlock()
	return s.warmLocked(ctx)
}

func (s *Store) warmLocked(ctx context.Context) error {
	all, err := s.backend.GetTasksByPattern(ctx, "")
	if err != nil {
		return treeerrors.StorageError{Op: "warm index", Err: err}
	}
	s.index.Clear()
	for _, t := range all {
		s.index.IndexTask(t)
	}
	s.index.SetComplete(true)
	s.logger.Debug("index warmed", zap.Int("tasks", len(all)))
	return nil
}

// ensureIndex warms the index if it is not complete. Mutations need the full
// dependents view to propagate statuses and guard deletions.
func (s *Store) ensureIndex(ctx context.Context) error {
	if s.index.Complete() {
		return nil
	}
	s.warmMu.Lock()
	defer s.warmMu.Unlock()
	if s.index.Complete() {
		return nil
	}
	return s.warmLocked(ctx)
}

// ClearCache wipes the index and cache. The index stays incomplete until the
// next Warm or mutation.
func (s *Store) ClearCache(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := s.txns.Begin()
	tx.RecordClear(s.index.Snapshot())
	s.index.Clear()
	s.cache.Clear()
	s.validator.Reset()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	s.logger.Info("cache and index cleared")
	return nil
}

// fail rolls tx back and returns cause, combined with any rollback failure.
func (s *Store) fail(ctx context.Context, tx *txn.Tx, cause error, paths []string) error {
	for _, p := range paths {
		s.validator.Forget(p)
	}
	// Compensation must run even when ctx is what failed.
	if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
		s.logger.Error("rollback failed", zap.String("tx", tx.ID), zap.Error(rbErr))
		return fmt.Errorf("%w (rollback: %v)", cause, rbErr)
	}
	return cause
}
