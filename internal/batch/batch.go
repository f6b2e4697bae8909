// Package batch applies lists of task operations through the store. Each
// operation succeeds or fails on its own; storage failures are retried.
package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/abatilo/tasktree/internal/config"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/logging"
	"github.com/abatilo/tasktree/internal/task"
)

// Kind names what an operation does.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Operation is one entry of a batch. Create is required for KindCreate and
// Update for KindUpdate.
type Operation struct {
	Kind   Kind                  `yaml:"kind" json:"kind"`
	Path   string                `yaml:"path" json:"path"`
	Create *task.CreateTaskInput `yaml:"create,omitempty" json:"create,omitempty"`
	Update *task.UpdateTaskInput `yaml:"update,omitempty" json:"update,omitempty"`
}

// Item is the outcome of one operation.
type Item struct {
	Index    int        `json:"index"`
	Kind     Kind       `json:"kind"`
	Path     string     `json:"path"`
	Task     *task.Task `json:"task,omitempty"`
	Err      error      `json:"-"`
	Attempts int        `json:"attempts"`
}

// Result summarizes a processed batch.
type Result struct {
	ProcessedCount int
	FailedCount    int
	Items          []Item
}

// Err combines the errors of every failed item, or returns nil.
func (r Result) Err() error {
	var errs error
	for _, it := range r.Items {
		if it.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("operation %d (%s %s): %w", it.Index, it.Kind, it.Path, it.Err))
		}
	}
	return errs
}

// Store is the subset of the task store the processor drives.
type Store interface {
	Create(ctx context.Context, in task.CreateTaskInput) (*task.Task, error)
	Update(ctx context.Context, path string, in task.UpdateTaskInput) (*task.Task, error)
	Delete(ctx context.Context, path string) error
}

// Processor runs batches against a Store.
type Processor struct {
	store  Store
	cfg    config.BatchConfig
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logging.OrNop(l).Named("batch")
	}
}

// New creates a processor.
func New(store Store, cfg config.BatchConfig, opts ...Option) *Processor {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = config.Default().Batch.GroupSize
	}
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = 1
	}
	p := &Processor{
		store:  store,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentBatches)),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process applies ops in order. Failed operations are recorded in the result
// and do not stop the rest. The returned error is only set when ctx ends
// before the batch could start; later cancellation shows up per item.
func (p *Processor) Process(ctx context.Context, ops []Operation) (Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("waiting for batch slot: %w", err)
	}
	defer p.sem.Release(1)

	res := Result{Items: make([]Item, 0, len(ops))}
	for start := 0; start < len(ops); start += p.cfg.GroupSize {
		end := min(start+p.cfg.GroupSize, len(ops))
		p.logger.Debug("processing group", zap.Int("from", start), zap.Int("to", end-1))
		for i := start; i < end; i++ {
			item := p.run(ctx, i, ops[i])
			if item.Err != nil {
				res.FailedCount++
				p.logger.Warn("batch operation failed",
					zap.Int("index", i),
					zap.String("kind", string(item.Kind)),
					zap.String("path", item.Path),
					zap.Int("attempts", item.Attempts),
					zap.Error(item.Err),
				)
			} else {
				res.ProcessedCount++
			}
			res.Items = append(res.Items, item)
		}
	}
	p.logger.Info("batch processed",
		zap.Int("processed", res.ProcessedCount),
		zap.Int("failed", res.FailedCount),
	)
	return res, nil
}

func (p *Processor) run(ctx context.Context, i int, op Operation) Item {
	item := Item{Index: i, Kind: op.Kind, Path: op.Path}
	if op.Kind == KindCreate && op.Path == "" && op.Create != nil {
		item.Path = op.Create.Path
	}
	if err := validate(op); err != nil {
		item.Err = err
		return item
	}

	maxAttempts := 1 + max(p.cfg.MaxRetries, 0)
	for item.Attempts < maxAttempts {
		item.Attempts++
		item.Task, item.Err = p.attempt(ctx, op)
		if item.Err == nil || !treeerrors.IsTransient(item.Err) || item.Attempts == maxAttempts {
			break
		}
		p.logger.Debug("retrying batch operation",
			zap.Int("index", i),
			zap.Int("attempt", item.Attempts),
			zap.Error(item.Err),
		)
		if err := sleep(ctx, p.cfg.RetryDelay); err != nil {
			item.Err = err
			break
		}
	}
	return item
}

func (p *Processor) attempt(ctx context.Context, op Operation) (*task.Task, error) {
	if p.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.OperationTimeout)
		defer cancel()
	}
	switch op.Kind {
	case KindCreate:
		in := *op.Create
		if in.Path == "" {
			in.Path = op.Path
		}
		return p.store.Create(ctx, in)
	case KindUpdate:
		return p.store.Update(ctx, op.Path, *op.Update)
	default:
		return nil, p.store.Delete(ctx, op.Path)
	}
}

func validate(op Operation) error {
	switch op.Kind {
	case KindCreate:
		if op.Create == nil {
			return treeerrors.InvalidFieldError{Path: op.Path, Field: "create", Reason: "create operation has no task"}
		}
		if op.Path != "" && op.Create.Path != "" && op.Path != op.Create.Path {
			return treeerrors.InvalidFieldError{Path: op.Path, Field: "path", Reason: "operation path differs from task path " + op.Create.Path}
		}
	case KindUpdate:
		if op.Update == nil {
			return treeerrors.InvalidFieldError{Path: op.Path, Field: "update", Reason: "update operation has no changes"}
		}
	case KindDelete:
	default:
		return treeerrors.InvalidFieldError{Path: op.Path, Field: "kind", Reason: fmt.Sprintf("unknown operation kind %q", op.Kind)}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
