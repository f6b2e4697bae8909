// Package output renders tasks and command results for the CLI.
package output

import (
	"github.com/abatilo/tasktree/internal/batch"
	"github.com/abatilo/tasktree/internal/task"
)

// Formatter defines the interface for output formatting.
type Formatter interface {
	FormatTask(t *task.Task) string
	FormatTaskList(tasks []*task.Task) string
	FormatTree(nodes []TreeNode) string
	FormatBatch(res batch.Result) string
	FormatProblems(problems []error) string
	FormatError(err error) string
	FormatMessage(msg string) string
}

// New returns the JSON formatter when asJSON is set, otherwise the human one.
func New(asJSON bool) Formatter {
	if asJSON {
		return NewJSONFormatter()
	}
	return NewHumanFormatter()
}

// TreeNode is a task with its subtasks, for hierarchy output.
type TreeNode struct {
	Task     *task.Task
	Children []TreeNode
}

// BuildTree arranges tasks by parent path. Tasks whose parent is not in the
// list become roots. Siblings keep path order.
func BuildTree(tasks []*task.Task) []TreeNode {
	sorted := make([]*task.Task, len(tasks))
	copy(sorted, tasks)
	task.SortByPath(sorted)

	present := make(map[string]bool, len(sorted))
	children := make(map[string][]*task.Task)
	for _, t := range sorted {
		present[t.Path] = true
	}
	var roots []*task.Task
	for _, t := range sorted {
		if t.ParentPath != "" && present[t.ParentPath] {
			children[t.ParentPath] = append(children[t.ParentPath], t)
			continue
		}
		roots = append(roots, t)
	}

	var build func(t *task.Task) TreeNode
	build = func(t *task.Task) TreeNode {
		node := TreeNode{Task: t}
		for _, c := range children[t.Path] {
			node.Children = append(node.Children, build(c))
		}
		return node
	}
	nodes := make([]TreeNode, len(roots))
	for i, r := range roots {
		nodes[i] = build(r)
	}
	return nodes
}
