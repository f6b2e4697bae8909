package output

import (
	"encoding/json"

	"github.com/abatilo/tasktree/internal/batch"
	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// marshalJSON marshals a value to indented JSON with a trailing newline.
func marshalJSON(v any) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data) + "\n"
}

// NewJSONFormatter creates a new JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// FormatTask formats a single task as JSON.
func (f *JSONFormatter) FormatTask(t *task.Task) string {
	return marshalJSON(t)
}

// FormatTaskList formats a list of tasks as JSON.
func (f *JSONFormatter) FormatTaskList(tasks []*task.Task) string {
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return marshalJSON(tasks)
}

// treeNodeJSON is the JSON representation of a hierarchy node.
type treeNodeJSON struct {
	Path     string         `json:"path"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Status   string         `json:"status"`
	Children []treeNodeJSON `json:"children,omitempty"`
}

func toTreeNodeJSON(node TreeNode) treeNodeJSON {
	children := make([]treeNodeJSON, len(node.Children))
	for i, c := range node.Children {
		children[i] = toTreeNodeJSON(c)
	}
	return treeNodeJSON{
		Path:     node.Task.Path,
		Name:     node.Task.Name,
		Type:     string(node.Task.Type),
		Status:   string(node.Task.Status),
		Children: children,
	}
}

// FormatTree formats the task hierarchy as JSON.
func (f *JSONFormatter) FormatTree(nodes []TreeNode) string {
	jsonNodes := make([]treeNodeJSON, len(nodes))
	for i, n := range nodes {
		jsonNodes[i] = toTreeNodeJSON(n)
	}
	return marshalJSON(jsonNodes)
}

// errorJSON is the JSON representation of an error.
type errorJSON struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func toErrorJSON(err error) errorJSON {
	return errorJSON{Error: err.Error(), Kind: string(treeerrors.KindOf(err))}
}

type batchItemJSON struct {
	batch.Item
	Error *errorJSON `json:"error,omitempty"`
}

type batchJSON struct {
	Processed int             `json:"processed"`
	Failed    int             `json:"failed"`
	Items     []batchItemJSON `json:"items"`
}

// FormatBatch formats a batch result as JSON.
func (f *JSONFormatter) FormatBatch(res batch.Result) string {
	out := batchJSON{
		Processed: res.ProcessedCount,
		Failed:    res.FailedCount,
		Items:     make([]batchItemJSON, len(res.Items)),
	}
	for i, it := range res.Items {
		out.Items[i] = batchItemJSON{Item: it}
		if it.Err != nil {
			e := toErrorJSON(it.Err)
			out.Items[i].Error = &e
		}
	}
	return marshalJSON(out)
}

// FormatProblems formats consistency problems as a JSON array.
func (f *JSONFormatter) FormatProblems(problems []error) string {
	out := make([]errorJSON, len(problems))
	for i, p := range problems {
		out[i] = toErrorJSON(p)
	}
	return marshalJSON(out)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(err error) string {
	return marshalJSON(toErrorJSON(err))
}

// messageJSON is the JSON representation of a message.
type messageJSON struct {
	Message string `json:"message"`
}

// FormatMessage formats a simple message as JSON.
func (f *JSONFormatter) FormatMessage(msg string) string {
	return marshalJSON(messageJSON{Message: msg})
}
