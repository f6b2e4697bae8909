package deps

import (
	"fmt"
	"slices"
	"strings"

	"github.com/abatilo/tasktree/internal/task"
)

// Change is a status transition computed by Propagate.
type Change struct {
	Path      string
	From      task.Status
	To        task.Status
	BlockedBy []string
	Reason    string
}

// Lookup returns the current task at path, or false when it does not exist.
type Lookup func(path string) (*task.Task, bool)

// DependentsFunc returns the paths of tasks that depend on path.
type DependentsFunc func(path string) []string

// Propagate computes the status changes caused by transitions of the seed tasks.
//
// A dependency that is FAILED, BLOCKED, CANCELLED or missing moves a PENDING
// or IN_PROGRESS dependent to BLOCKED. A dependent that was blocked by
// propagation (BlockedBy set) returns to PENDING once every dependency is
// COMPLETED. Changed tasks are queued in turn; each task changes at most once,
// so the worklist always drains. Seeds themselves are never changed.
func Propagate(seeds []string, lookup Lookup, dependentsOf DependentsFunc) []Change {
	statusOf := make(map[string]task.Status)
	current := func(path string) (task.Status, bool) {
		if s, ok := statusOf[path]; ok {
			return s, true
		}
		t, ok := lookup(path)
		if !ok {
			return "", false
		}
		return t.Status, true
	}

	isSeed := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		isSeed[s] = struct{}{}
	}

	var changes []Change
	queue := slices.Clone(seeds)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		dependents := slices.Clone(dependentsOf(p))
		slices.Sort(dependents)
		for _, path := range dependents {
			if _, ok := isSeed[path]; ok {
				continue
			}
			if _, ok := statusOf[path]; ok {
				continue
			}
			d, ok := lookup(path)
			if !ok {
				continue
			}
			c, changed := evaluate(d, current)
			if !changed {
				continue
			}
			statusOf[path] = c.To
			changes = append(changes, c)
			queue = append(queue, path)
		}
	}
	return changes
}

func evaluate(d *task.Task, statusOf func(string) (task.Status, bool)) (Change, bool) {
	var (
		blockers []string
		reasons  []string
		pending  bool
	)
	for _, dep := range d.Dependencies {
		s, ok := statusOf(dep)
		switch {
		case !ok:
			blockers = append(blockers, dep)
			reasons = append(reasons, fmt.Sprintf("dependency %s was deleted", dep))
		case s == task.StatusFailed, s == task.StatusBlocked, s == task.StatusCancelled:
			blockers = append(blockers, dep)
			reasons = append(reasons, fmt.Sprintf("dependency %s is %s", dep, s))
		case s != task.StatusCompleted:
			pending = true
		}
	}

	switch d.Status {
	case task.StatusPending, task.StatusInProgress:
		if len(blockers) > 0 {
			return Change{
				Path:      d.Path,
				From:      d.Status,
				To:        task.StatusBlocked,
				BlockedBy: blockers,
				Reason:    strings.Join(reasons, "; "),
			}, true
		}
	case task.StatusBlocked:
		if len(d.Metadata.BlockedBy) > 0 && len(blockers) == 0 && !pending {
			return Change{Path: d.Path, From: d.Status, To: task.StatusPending}, true
		}
	}
	return Change{}, false
}

// Apply writes a change onto a copy of t.
func (c Change) Apply(t *task.Task) *task.Task {
	out := t.Clone()
	out.Status = c.To
	out.Metadata.BlockedBy = slices.Clone(c.BlockedBy)
	out.Metadata.BlockedReason = c.Reason
	return out
}
