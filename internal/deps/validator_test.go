//nolint:testpackage // Tests require internal access for thorough testing
package deps

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/abatilo/tasktree/internal/config"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	return NewValidator(config.DepsConfig{
		MaxTraversalDepth: 10,
		ValidationTTL:     time.Minute,
		MemoSize:          64,
	}, WithLogger(zaptest.NewLogger(t)))
}

// countingResolver records how many times each path is resolved.
type countingResolver struct {
	tasks map[string]*task.Task
	calls int
}

func newCounting(tasks ...*task.Task) *countingResolver {
	r := &countingResolver{tasks: make(map[string]*task.Task)}
	for _, t := range tasks {
		r.tasks[t.Path] = t
	}
	return r
}

func (r *countingResolver) resolve(_ context.Context, path string) (*task.Task, error) {
	r.calls++
	return r.tasks[path], nil
}

func TestValidate(t *testing.T) {
	existing := []*task.Task{
		makeTask("a", task.StatusPending, "b"),
		makeTask("b", task.StatusPending, "c"),
		makeTask("c", task.StatusPending),
	}

	tests := []struct {
		name string
		task *task.Task
		want treeerrors.Kind
	}{
		{"no dependencies", makeTask("n", task.StatusPending), ""},
		{"valid chain", makeTask("n", task.StatusPending, "a"), ""},
		{"self", makeTask("n", task.StatusPending, "n"), treeerrors.KindDependencySelf},
		{"duplicate", makeTask("n", task.StatusPending, "a", "a"), treeerrors.KindDependencyDuplicate},
		{"missing", makeTask("n", task.StatusPending, "zzz"), treeerrors.KindDependencyMissing},
		{"closes cycle", makeTask("c", task.StatusPending, "a"), treeerrors.KindDependencyCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(t)
			err := v.Validate(context.Background(), tt.task, MapResolver(existing...))
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if got := treeerrors.KindOf(err); got != tt.want {
				t.Errorf("KindOf(Validate()) = %s, want %s (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestValidateReportsCyclePath(t *testing.T) {
	v := newValidator(t)
	r := MapResolver(
		makeTask("a", task.StatusPending, "b"),
		makeTask("b", task.StatusPending, "c"),
	)

	err := v.Validate(context.Background(), makeTask("c", task.StatusPending, "a"), r)
	var cycle treeerrors.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Validate() error = %v, want CycleError", err)
	}
	if diff := cmp.Diff([]string{"c", "a", "b", "c"}, cycle.Cycle); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}
}

func chain(n int) []*task.Task {
	tasks := make([]*task.Task, 0, n+1)
	for i := range n {
		tasks = append(tasks, makeTask(fmt.Sprintf("t%d", i), task.StatusPending, fmt.Sprintf("t%d", i+1)))
	}
	return append(tasks, makeTask(fmt.Sprintf("t%d", n), task.StatusPending))
}

func TestValidateDepth(t *testing.T) {
	tests := []struct {
		name    string
		edges   int
		wantErr bool
	}{
		{"at limit", 10, false},
		{"over limit", 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := chain(tt.edges)
			v := newValidator(t)
			err := v.Validate(context.Background(), tasks[0], MapResolver(tasks...))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if got := treeerrors.KindOf(err); got != treeerrors.KindDependencyDepthExceeded {
				t.Errorf("KindOf(Validate()) = %s, want DependencyDepthExceeded", got)
			}
		})
	}
}

func TestValidateDepthIgnoresOrder(t *testing.T) {
	// q heads a 9-edge chain and p reaches it one edge later, so root -> p -> q
	// is 11 edges long whichever dependency the walk visits first.
	tasks := []*task.Task{makeTask("q", task.StatusPending, "c1")}
	for i := 1; i < 9; i++ {
		tasks = append(tasks, makeTask(fmt.Sprintf("c%d", i), task.StatusPending, fmt.Sprintf("c%d", i+1)))
	}
	tasks = append(tasks, makeTask("c9", task.StatusPending), makeTask("p", task.StatusPending, "q"))
	r := MapResolver(tasks...)
	v := newValidator(t)

	for _, order := range [][]string{{"p", "q"}, {"q", "p"}} {
		root := makeTask("root", task.StatusPending, order...)
		err := v.Validate(context.Background(), root, r)
		if got := treeerrors.KindOf(err); got != treeerrors.KindDependencyDepthExceeded {
			t.Errorf("Validate(deps %v) kind = %s (%v), want DependencyDepthExceeded", order, got, err)
		}
	}

	shallow := makeTask("root", task.StatusPending, "q", "c5")
	if err := v.Validate(context.Background(), shallow, r); err != nil {
		t.Errorf("Validate(deps [q c5]) error = %v", err)
	}
}

func TestValidateMemoSkipsTraversal(t *testing.T) {
	v := newValidator(t)
	tasks := chain(5)
	r := newCounting(tasks...)
	ctx := context.Background()

	if err := v.Validate(ctx, tasks[0], r.resolve); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	first := r.calls

	if err := v.Validate(ctx, tasks[0], r.resolve); err != nil {
		t.Fatalf("second Validate() error = %v", err)
	}
	// Only the direct dependency is resolved on a memo hit.
	if got := r.calls - first; got != 1 {
		t.Errorf("memo hit resolved %d paths, want 1", got)
	}

	v.Forget(tasks[0].Path)
	before := r.calls
	if err := v.Validate(ctx, tasks[0], r.resolve); err != nil {
		t.Fatalf("Validate() after Forget error = %v", err)
	}
	if r.calls-before != first {
		t.Errorf("Validate() after Forget resolved %d paths, want %d", r.calls-before, first)
	}
}

func TestValidateStatusTransition(t *testing.T) {
	r := MapResolver(
		makeTask("done", task.StatusCompleted),
		makeTask("open", task.StatusPending),
		makeTask("broken", task.StatusFailed),
	)

	tests := []struct {
		name        string
		deps        []string
		target      task.Status
		outstanding []string
	}{
		{"complete with all done", []string{"done"}, task.StatusCompleted, nil},
		{"complete with open dep", []string{"done", "open"}, task.StatusCompleted, []string{"open"}},
		{"complete with failed dep", []string{"broken"}, task.StatusCompleted, []string{"broken"}},
		{"start with open dep", []string{"open"}, task.StatusInProgress, nil},
		{"start with failed dep", []string{"open", "broken"}, task.StatusInProgress, []string{"broken"}},
		{"fail is always allowed", []string{"broken"}, task.StatusFailed, nil},
		{"block is always allowed", []string{"open"}, task.StatusBlocked, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(t)
			tk := makeTask("x", task.StatusPending, tt.deps...)
			err := v.ValidateStatusTransition(context.Background(), tk, tt.target, r)
			if tt.outstanding == nil {
				if err != nil {
					t.Fatalf("ValidateStatusTransition() error = %v", err)
				}
				return
			}
			var te treeerrors.StatusTransitionError
			if !errors.As(err, &te) {
				t.Fatalf("ValidateStatusTransition() error = %v, want StatusTransitionError", err)
			}
			if diff := cmp.Diff(tt.outstanding, te.Outstanding); diff != "" {
				t.Errorf("outstanding mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateDeletion(t *testing.T) {
	v := newValidator(t)

	if err := v.ValidateDeletion("a", []*task.Task{
		makeTask("b", task.StatusPending),
		makeTask("c", task.StatusBlocked),
	}); err != nil {
		t.Errorf("ValidateDeletion() error = %v", err)
	}

	err := v.ValidateDeletion("a", []*task.Task{
		makeTask("d", task.StatusInProgress),
		makeTask("b", task.StatusPending),
		makeTask("c", task.StatusInProgress),
	})
	var de treeerrors.DeletionBlockedError
	if !errors.As(err, &de) {
		t.Fatalf("ValidateDeletion() error = %v, want DeletionBlockedError", err)
	}
	if !cmp.Equal(de.Dependents, []string{"c", "d"}) {
		t.Errorf("Dependents = %v, want [c d]", de.Dependents)
	}
}

func TestValidateBatch(t *testing.T) {
	existing := MapResolver(makeTask("base", task.StatusCompleted))

	tests := []struct {
		name  string
		batch []*task.Task
		want  treeerrors.Kind
	}{
		{
			name: "batch members depend on each other",
			batch: []*task.Task{
				makeTask("a", task.StatusPending, "b"),
				makeTask("b", task.StatusPending, "base"),
			},
		},
		{
			name: "cycle inside batch",
			batch: []*task.Task{
				makeTask("a", task.StatusPending, "b"),
				makeTask("b", task.StatusPending, "c"),
				makeTask("c", task.StatusPending, "a"),
			},
			want: treeerrors.KindDependencyCycle,
		},
		{
			name: "self dependency wins over cycle",
			batch: []*task.Task{
				makeTask("a", task.StatusPending, "a"),
			},
			want: treeerrors.KindDependencySelf,
		},
		{
			name: "missing outside batch",
			batch: []*task.Task{
				makeTask("a", task.StatusPending, "nowhere"),
			},
			want: treeerrors.KindDependencyMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(t)
			err := v.ValidateBatch(context.Background(), tt.batch, existing)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("ValidateBatch() error = %v", err)
				}
				return
			}
			if got := treeerrors.KindOf(err); got != tt.want {
				t.Errorf("KindOf(ValidateBatch()) = %s, want %s (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestValidateBatchCycleThroughExisting(t *testing.T) {
	v := newValidator(t)
	existing := MapResolver(
		makeTask("x", task.StatusPending, "y"),
		makeTask("y", task.StatusPending),
	)

	// y now depends on x, which already depends on y.
	err := v.ValidateBatch(context.Background(), []*task.Task{makeTask("y", task.StatusPending, "x")}, existing)
	if treeerrors.KindOf(err) != treeerrors.KindDependencyCycle {
		t.Errorf("ValidateBatch() error = %v, want cycle", err)
	}
}

func TestCheckGraph(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	if err := v.CheckGraph(ctx, chain(4)); err != nil {
		t.Errorf("CheckGraph(chain) error = %v", err)
	}

	err := v.CheckGraph(ctx, []*task.Task{
		makeTask("a", task.StatusPending, "b"),
		makeTask("b", task.StatusPending, "a"),
		makeTask("c", task.StatusPending, "missing"),
		makeTask("d", task.StatusPending, "d"),
	})
	errs := multierr.Errors(err)
	if len(errs) != 3 {
		t.Fatalf("CheckGraph() returned %d errors, want 3: %v", len(errs), err)
	}
	want := []treeerrors.Kind{
		treeerrors.KindDependencyCycle,
		treeerrors.KindDependencyMissing,
		treeerrors.KindDependencySelf,
	}
	for i, e := range errs {
		if got := treeerrors.KindOf(e); got != want[i] {
			t.Errorf("errs[%d] kind = %s, want %s", i, got, want[i])
		}
	}
}
