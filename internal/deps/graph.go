package deps

import (
	"context"
	"slices"

	"github.com/abatilo/tasktree/internal/task"
)

// Resolver returns the task at path, or nil when no such task exists.
type Resolver func(ctx context.Context, path string) (*task.Task, error)

// MapResolver resolves paths against a fixed set of tasks.
func MapResolver(tasks ...*task.Task) Resolver {
	m := make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		m[t.Path] = t
	}
	return func(_ context.Context, path string) (*task.Task, error) {
		return m[path], nil
	}
}

// Overlay resolves paths in batch first and falls back to base.
func Overlay(batch []*task.Task, base Resolver) Resolver {
	top := MapResolver(batch...)
	return func(ctx context.Context, path string) (*task.Task, error) {
		if t, _ := top(ctx, path); t != nil {
			return t, nil
		}
		if base == nil {
			return nil, nil
		}
		return base(ctx, path)
	}
}

// Graph is an adjacency view over tasks keyed by path.
// Nodes live in an arena slice addressed through the path index.
type Graph struct {
	index map[string]int
	nodes []node
}

type node struct {
	path   string
	status task.Status
	deps   []string
}

// NewGraph creates a Graph from a list of tasks.
func NewGraph(tasks []*task.Task) *Graph {
	g := &Graph{
		index: make(map[string]int, len(tasks)),
		nodes: make([]node, 0, len(tasks)),
	}
	for _, t := range tasks {
		g.Add(t)
	}
	return g
}

// Add inserts a task, replacing any node already at its path.
func (g *Graph) Add(t *task.Task) {
	n := node{path: t.Path, status: t.Status, deps: slices.Clone(t.Dependencies)}
	if i, ok := g.index[t.Path]; ok {
		g.nodes[i] = n
		return
	}
	g.index[t.Path] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// Has reports whether path is in the graph.
func (g *Graph) Has(path string) bool {
	_, ok := g.index[path]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Status returns the status recorded for path.
func (g *Graph) Status(path string) (task.Status, bool) {
	i, ok := g.index[path]
	if !ok {
		return "", false
	}
	return g.nodes[i].status, true
}

// Dependencies returns the dependency paths of path.
func (g *Graph) Dependencies(path string) []string {
	i, ok := g.index[path]
	if !ok {
		return nil
	}
	return slices.Clone(g.nodes[i].deps)
}

// Dependents returns the sorted paths of tasks that depend on path.
func (g *Graph) Dependents(path string) []string {
	var dependents []string
	for _, n := range g.nodes {
		if slices.Contains(n.deps, path) {
			dependents = append(dependents, n.path)
		}
	}
	slices.Sort(dependents)
	return dependents
}

// BlockedBy returns the dependencies of path that are not COMPLETED.
// Dependencies outside the graph count as outstanding.
func (g *Graph) BlockedBy(path string) []string {
	var blockers []string
	for _, dep := range g.Dependencies(path) {
		if s, ok := g.Status(dep); !ok || s != task.StatusCompleted {
			blockers = append(blockers, dep)
		}
	}
	return blockers
}

const (
	white = iota
	grey
	black
)

// FindCycle searches the whole graph for a cycle using three-colour DFS and
// returns it as a path list whose first and last entries match. Self edges
// and edges to paths outside the graph are ignored. It returns nil for an acyclic graph.
func (g *Graph) FindCycle() []string {
	colour := make([]int, len(g.nodes))

	roots := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		roots = append(roots, n.path)
	}
	slices.Sort(roots)

	type frame struct {
		at   int
		next int
	}

	for _, root := range roots {
		start := g.index[root]
		if colour[start] != white {
			continue
		}
		stack := []frame{{at: start}}
		colour[start] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.nodes[top.at].deps
			if top.next == len(deps) {
				colour[top.at] = black
				stack = stack[:len(stack)-1]
				continue
			}
			dep := deps[top.next]
			top.next++

			i, ok := g.index[dep]
			if !ok || i == top.at {
				continue
			}
			switch colour[i] {
			case grey:
				cycle := []string{}
				for j := len(stack) - 1; j >= 0; j-- {
					cycle = append(cycle, g.nodes[stack[j].at].path)
					if stack[j].at == i {
						break
					}
				}
				slices.Reverse(cycle)
				return append(cycle, dep)
			case white:
				colour[i] = grey
				stack = append(stack, frame{at: i})
			}
		}
	}
	return nil
}
