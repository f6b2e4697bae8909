// Package deps enforces the dependency rules between tasks and computes
// the status changes a transition causes in its dependents.
package deps

import (
	"context"
	"slices"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/abatilo/tasktree/internal/config"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/logging"
	"github.com/abatilo/tasktree/internal/task"
)

// Validator checks dependency sets and status transitions.
type Validator struct {
	maxDepth int
	memo     *expirable.LRU[string, struct{}]
	logger   *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		v.logger = logging.OrNop(l).Named("deps")
	}
}

// NewValidator creates a Validator from the deps configuration.
func NewValidator(cfg config.DepsConfig, opts ...Option) *Validator {
	v := &Validator{
		maxDepth: cfg.MaxTraversalDepth,
		memo:     expirable.NewLRU[string, struct{}](cfg.MemoSize, nil, cfg.ValidationTTL),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate rejects self-dependencies, duplicates and missing references, then
// walks the dependency graph from t looking for a cycle. A successful walk is
// remembered for the validation TTL keyed by path and sorted dependency set.
func (v *Validator) Validate(ctx context.Context, t *task.Task, resolve Resolver) error {
	if err := checkDirect(ctx, t, resolve); err != nil {
		return err
	}

	key := memoKey(t)
	if _, ok := v.memo.Get(key); ok {
		v.logger.Debug("dependency validation memo hit", zap.String("path", t.Path))
		return nil
	}
	if err := v.walk(ctx, t, resolve); err != nil {
		return err
	}
	v.memo.Add(key, struct{}{})
	return nil
}

func checkList(t *task.Task) error {
	seen := make(map[string]struct{}, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		if dep == t.Path {
			return treeerrors.SelfDependencyError{Path: t.Path}
		}
		if _, dup := seen[dep]; dup {
			return treeerrors.DuplicateDependencyError{Path: t.Path, Dependency: dep}
		}
		seen[dep] = struct{}{}
	}
	return nil
}

// checkDirect validates the dependency list itself and that every entry resolves.
func checkDirect(ctx context.Context, t *task.Task, resolve Resolver) error {
	if err := checkList(t); err != nil {
		return err
	}
	for _, dep := range t.Dependencies {
		d, err := resolve(ctx, dep)
		if err != nil {
			return err
		}
		if d == nil {
			return treeerrors.MissingDependencyError{Path: t.Path, Dependency: dep}
		}
	}
	return nil
}

// walk is an iterative DFS with an explicit path stack. Nodes are loaded into
// a Graph on first visit so each path is resolved at most once. Each finished
// node records its height, the longest chain of edges below it, so a node
// reached again along a longer path is still measured against maxDepth.
func (v *Validator) walk(ctx context.Context, t *task.Task, resolve Resolver) error {
	g := NewGraph([]*task.Task{t})
	missing := make(map[string]struct{})

	type frame struct {
		path string
		next int
	}
	stack := []frame{{path: t.Path}}
	onStack := map[string]int{t.Path: 0}
	height := make(map[string]int)
	tooDeep := treeerrors.DepthExceededError{Path: t.Path, MaxDepth: v.maxDepth}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		top := &stack[len(stack)-1]
		deps := g.nodes[g.index[top.path]].deps
		if top.next == len(deps) {
			h := 0
			for _, dep := range deps {
				if dh, ok := height[dep]; ok {
					h = max(h, dh+1)
				}
			}
			if len(stack)-1+h > v.maxDepth {
				return tooDeep
			}
			height[top.path] = h
			delete(onStack, top.path)
			stack = stack[:len(stack)-1]
			continue
		}
		dep := deps[top.next]
		top.next++

		if at, ok := onStack[dep]; ok {
			cycle := make([]string, 0, len(stack)-at+1)
			for _, f := range stack[at:] {
				cycle = append(cycle, f.path)
			}
			return treeerrors.CycleError{Cycle: append(cycle, dep)}
		}
		if dh, ok := height[dep]; ok {
			if len(stack)+dh > v.maxDepth {
				return tooDeep
			}
			continue
		}
		if _, ok := missing[dep]; ok {
			continue
		}
		if len(stack) > v.maxDepth {
			return tooDeep
		}

		if !g.Has(dep) {
			d, err := resolve(ctx, dep)
			if err != nil {
				return err
			}
			if d == nil {
				// Only direct dependencies must exist; deeper gaps end the chain.
				missing[dep] = struct{}{}
				continue
			}
			g.Add(d)
		}
		onStack[dep] = len(stack)
		stack = append(stack, frame{path: dep})
	}
	return nil
}

func memoKey(t *task.Task) string {
	deps := slices.Clone(t.Dependencies)
	slices.Sort(deps)
	return t.Path + "\x00" + strings.Join(deps, "\x00")
}

// Forget drops memoized results for path.
func (v *Validator) Forget(path string) {
	prefix := path + "\x00"
	for _, k := range v.memo.Keys() {
		if strings.HasPrefix(k, prefix) {
			v.memo.Remove(k)
		}
	}
}

// Reset drops every memoized result.
func (v *Validator) Reset() {
	v.memo.Purge()
}

// ValidateStatusTransition checks that t may move to target. COMPLETED requires
// every dependency COMPLETED; IN_PROGRESS is refused while any dependency has
// FAILED. Other targets are always allowed.
func (v *Validator) ValidateStatusTransition(ctx context.Context, t *task.Task, target task.Status, resolve Resolver) error {
	if target != task.StatusCompleted && target != task.StatusInProgress {
		return nil
	}
	var offending []string
	for _, dep := range t.Dependencies {
		d, err := resolve(ctx, dep)
		if err != nil {
			return err
		}
		switch target {
		case task.StatusCompleted:
			if d == nil || d.Status != task.StatusCompleted {
				offending = append(offending, dep)
			}
		case task.StatusInProgress:
			if d != nil && d.Status == task.StatusFailed {
				offending = append(offending, dep)
			}
		}
	}
	if len(offending) > 0 {
		return treeerrors.StatusTransitionError{
			Path:        t.Path,
			From:        string(t.Status),
			To:          string(target),
			Outstanding: offending,
		}
	}
	return nil
}

// ValidateDeletion refuses to delete path while any dependent is IN_PROGRESS.
func (v *Validator) ValidateDeletion(path string, dependents []*task.Task) error {
	var active []string
	for _, d := range dependents {
		if d.Status == task.StatusInProgress {
			active = append(active, d.Path)
		}
	}
	if len(active) > 0 {
		slices.Sort(active)
		return treeerrors.DeletionBlockedError{Path: path, Dependents: active}
	}
	return nil
}

// ValidateBatch first looks for a cycle among the batch's own edges, then
// validates every task against the existing graph overlaid with the batch.
func (v *Validator) ValidateBatch(ctx context.Context, tasks []*task.Task, resolve Resolver) error {
	for _, t := range tasks {
		if err := checkList(t); err != nil {
			return err
		}
	}
	if cycle := NewGraph(tasks).FindCycle(); cycle != nil {
		return treeerrors.CycleError{Cycle: cycle}
	}
	overlay := Overlay(tasks, resolve)
	for _, t := range tasks {
		if err := v.Validate(ctx, t, overlay); err != nil {
			return err
		}
	}
	return nil
}

// CheckGraph validates every task in a complete task set and returns all
// problems found. At most one cycle is reported; depth is only checked once
// the graph is known to be acyclic.
func (v *Validator) CheckGraph(ctx context.Context, tasks []*task.Task) error {
	var errs error
	cycle := NewGraph(tasks).FindCycle()
	if cycle != nil {
		errs = multierr.Append(errs, treeerrors.CycleError{Cycle: cycle})
	}
	resolve := MapResolver(tasks...)
	for _, t := range tasks {
		if err := checkDirect(ctx, t, resolve); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if cycle == nil {
			errs = multierr.Append(errs, v.walk(ctx, t, resolve))
		}
	}
	return errs
}
