package task

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Status represents the current state of a task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusBlocked    Status = "BLOCKED"
	StatusCancelled  Status = "CANCELLED"
)

// Type represents the kind of node a task is in the hierarchy.
type Type string

const (
	TypeTask      Type = "TASK"
	TypeMilestone Type = "MILESTONE"
	TypeGroup     Type = "GROUP"
)

// Task represents a tracked work item addressed by its path.
type Task struct {
	Path         string    `yaml:"path" json:"path"`
	Name         string    `yaml:"name" json:"name"`
	Description  string    `yaml:"-" json:"description,omitempty"` // Markdown body in the file backend
	Type         Type      `yaml:"type" json:"type"`
	Status       Status    `yaml:"status" json:"status"`
	ParentPath   string    `yaml:"parent_path,omitempty" json:"parentPath,omitempty"`
	Subtasks     []string  `yaml:"subtasks,omitempty" json:"subtasks,omitempty"`
	Dependencies []string  `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Metadata     Metadata  `yaml:"metadata,omitempty" json:"metadata"`
	Notes        Notes     `yaml:"notes,omitempty" json:"notes"`
	Created      time.Time `yaml:"created" json:"created"`
	Updated      time.Time `yaml:"updated" json:"updated"`
	Version      int       `yaml:"version" json:"version"`
}

// Metadata holds structured and free-form attributes of a task.
type Metadata struct {
	Classification string         `yaml:"classification,omitempty" json:"classification,omitempty"`
	Priority       string         `yaml:"priority,omitempty" json:"priority,omitempty"`
	Technical      Technical      `yaml:"technical,omitempty" json:"technical"`
	BlockedBy      []string       `yaml:"blocked_by,omitempty" json:"blockedBy,omitempty"`
	BlockedReason  string         `yaml:"blocked_reason,omitempty" json:"blockedReason,omitempty"`
	CompletedBy    string         `yaml:"completed_by,omitempty" json:"completedBy,omitempty"`
	ErrorDetails   string         `yaml:"error_details,omitempty" json:"errorDetails,omitempty"`
	Custom         map[string]any `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// Technical describes the technical requirements of a task.
type Technical struct {
	Language     string   `yaml:"language,omitempty" json:"language,omitempty"`
	Framework    string   `yaml:"framework,omitempty" json:"framework,omitempty"`
	Environment  string   `yaml:"environment,omitempty" json:"environment,omitempty"`
	Requirements []string `yaml:"requirements,omitempty" json:"requirements,omitempty"`
}

// Notes holds ordered notes by category.
type Notes struct {
	Planning        []string `yaml:"planning,omitempty" json:"planning,omitempty"`
	Progress        []string `yaml:"progress,omitempty" json:"progress,omitempty"`
	Completion      []string `yaml:"completion,omitempty" json:"completion,omitempty"`
	Troubleshooting []string `yaml:"troubleshooting,omitempty" json:"troubleshooting,omitempty"`
}

// IsValidStatus checks if a status is known. CANCELLED is only valid when allowCancelled is set.
func IsValidStatus(s Status, allowCancelled bool) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked:
		return true
	case StatusCancelled:
		return allowCancelled
	default:
		return false
	}
}

// IsValidType checks if a task type is known.
func IsValidType(t Type) bool {
	switch t {
	case TypeTask, TypeMilestone, TypeGroup:
		return true
	default:
		return false
	}
}

// CanContain reports whether a parent of type parent may hold a child of type child.
func CanContain(parent, child Type) bool {
	switch parent {
	case TypeMilestone:
		return child == TypeTask || child == TypeGroup
	case TypeGroup:
		return child == TypeTask
	default:
		return false
	}
}

// Clone returns a deep copy of the task. Custom metadata values are copied shallowly.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Subtasks = slices.Clone(t.Subtasks)
	c.Dependencies = slices.Clone(t.Dependencies)
	c.Metadata.Technical.Requirements = slices.Clone(t.Metadata.Technical.Requirements)
	c.Metadata.BlockedBy = slices.Clone(t.Metadata.BlockedBy)
	c.Metadata.Custom = maps.Clone(t.Metadata.Custom)
	c.Notes = Notes{
		Planning:        slices.Clone(t.Notes.Planning),
		Progress:        slices.Clone(t.Notes.Progress),
		Completion:      slices.Clone(t.Notes.Completion),
		Troubleshooting: slices.Clone(t.Notes.Troubleshooting),
	}
	return &c
}

// CloneAll clones every task in the slice.
func CloneAll(tasks []*Task) []*Task {
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// SortByPath sorts tasks in place by path.
func SortByPath(tasks []*Task) {
	slices.SortFunc(tasks, func(a, b *Task) int {
		return strings.Compare(a.Path, b.Path)
	})
}
