package output

import (
	"fmt"
	"strings"

	"github.com/abatilo/tasktree/internal/batch"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

// HumanFormatter formats output for human-readable terminal display.
type HumanFormatter struct{}

// NewHumanFormatter creates a new HumanFormatter.
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// FormatTask formats a single task for display.
func (f *HumanFormatter) FormatTask(t *task.Task) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s  %s\n", f.statusIcon(t.Status), t.Path, t.Name)
	fmt.Fprintf(&sb, "  Type:     %s\n", t.Type)
	fmt.Fprintf(&sb, "  Status:   %s\n", t.Status)
	if t.Metadata.Priority != "" {
		fmt.Fprintf(&sb, "  Priority: %s\n", t.Metadata.Priority)
	}
	if t.ParentPath != "" {
		fmt.Fprintf(&sb, "  Parent:   %s\n", t.ParentPath)
	}
	if len(t.Subtasks) > 0 {
		fmt.Fprintf(&sb, "  Subtasks: %s\n", strings.Join(t.Subtasks, ", "))
	}
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(&sb, "  Depends:  %s\n", strings.Join(t.Dependencies, ", "))
	}
	if t.Metadata.BlockedReason != "" {
		fmt.Fprintf(&sb, "  Blocked:  %s\n", t.Metadata.BlockedReason)
	}
	fmt.Fprintf(&sb, "  Version:  %d (updated %s)\n", t.Version, t.Updated.Format("2006-01-02 15:04"))

	notes := []struct {
		label string
		items []string
	}{
		{"Planning", t.Notes.Planning},
		{"Progress", t.Notes.Progress},
		{"Completion", t.Notes.Completion},
		{"Troubleshooting", t.Notes.Troubleshooting},
	}
	for _, n := range notes {
		if len(n.items) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  %s:\n", n.label)
		for _, item := range n.items {
			fmt.Fprintf(&sb, "    - %s\n", item)
		}
	}
	if t.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(t.Description)
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatTaskList formats a list of tasks for display.
func (f *HumanFormatter) FormatTaskList(tasks []*task.Task) string {
	if len(tasks) == 0 {
		return "No tasks found.\n"
	}

	var sb strings.Builder
	for _, t := range tasks {
		sb.WriteString(f.formatTaskLine(t))
	}
	return sb.String()
}

// formatTaskLine formats a single task as a compact one-liner.
func (f *HumanFormatter) formatTaskLine(t *task.Task) string {
	deps := ""
	if len(t.Dependencies) > 0 {
		deps = fmt.Sprintf(" [after: %s]", strings.Join(t.Dependencies, ", "))
	}
	return fmt.Sprintf("%s %-9s %s  %s%s\n", f.statusIcon(t.Status), t.Type, t.Path, t.Name, deps)
}

func (f *HumanFormatter) statusIcon(s task.Status) string {
	switch s {
	case task.StatusPending:
		return "[ ]"
	case task.StatusInProgress:
		return "[*]"
	case task.StatusCompleted:
		return "[X]"
	case task.StatusFailed:
		return "[!]"
	case task.StatusBlocked:
		return "[#]"
	case task.StatusCancelled:
		return "[-]"
	default:
		return "[?]"
	}
}

// FormatTree formats the task hierarchy as ASCII art.
func (f *HumanFormatter) FormatTree(nodes []TreeNode) string {
	if len(nodes) == 0 {
		return "No tasks found.\n"
	}

	var sb strings.Builder
	for _, node := range nodes {
		f.formatTreeNode(&sb, node, "", true, true)
	}
	return sb.String()
}

func (f *HumanFormatter) formatTreeNode(sb *strings.Builder, node TreeNode, prefix string, isLast, isRoot bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if isRoot {
		connector = ""
	}

	fmt.Fprintf(sb, "%s%s%s %s  %s\n", prefix, connector, f.statusIcon(node.Task.Status), task.Base(node.Task.Path), node.Task.Name)

	childPrefix := prefix
	if !isRoot {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	for i, child := range node.Children {
		f.formatTreeNode(sb, child, childPrefix, i == len(node.Children)-1, false)
	}
}

// FormatBatch summarizes a batch run, listing failed operations.
func (f *HumanFormatter) FormatBatch(res batch.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Processed %d, failed %d.\n", res.ProcessedCount, res.FailedCount)
	for _, it := range res.Items {
		if it.Err == nil {
			continue
		}
		fmt.Fprintf(&sb, "  #%d %s %s: %s (%s)\n", it.Index, it.Kind, it.Path, it.Err, treeerrors.KindOf(it.Err))
	}
	return sb.String()
}

// FormatProblems lists consistency problems, one per line.
func (f *HumanFormatter) FormatProblems(problems []error) string {
	if len(problems) == 0 {
		return "No problems found.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d problem(s) found:\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(&sb, "  %s: %s\n", treeerrors.KindOf(p), p)
	}
	return sb.String()
}

// FormatError formats an error for display.
func (f *HumanFormatter) FormatError(err error) string {
	return fmt.Sprintf("Error: %s\n", err.Error())
}

// FormatMessage formats a simple message.
func (f *HumanFormatter) FormatMessage(msg string) string {
	return msg + "\n"
}
