package task

import (
	"fmt"
	"unicode/utf8"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
)

const (
	defaultMaxPathDepth         = 8
	defaultMaxNameLength        = 200
	defaultMaxDescriptionLength = 2000
	defaultMaxDependencies      = 50
	defaultMaxNotes             = 100
	defaultMaxNoteLength        = 1000
)

// Limits bounds the shape of a task.
type Limits struct {
	MaxPathDepth         int
	MaxNameLength        int
	MaxDescriptionLength int
	MaxDependencies      int
	MaxNotes             int
	MaxNoteLength        int
	AllowCancelled       bool
}

// DefaultLimits returns the limits used when no configuration is supplied.
func DefaultLimits() Limits {
	return Limits{
		MaxPathDepth:         defaultMaxPathDepth,
		MaxNameLength:        defaultMaxNameLength,
		MaxDescriptionLength: defaultMaxDescriptionLength,
		MaxDependencies:      defaultMaxDependencies,
		MaxNotes:             defaultMaxNotes,
		MaxNoteLength:        defaultMaxNoteLength,
	}
}

// Validate checks the task's own fields: path, enums, lengths, dependency count,
// and that a parent path, if set, is the path's directory.
// Relationships to other tasks are checked by the store and the dependency validator.
func (l Limits) Validate(t *Task) error {
	if err := ValidatePath(t.Path, l.MaxPathDepth); err != nil {
		return err
	}
	if t.ParentPath != "" {
		if err := ValidatePath(t.ParentPath, l.MaxPathDepth); err != nil {
			return treeerrors.InvalidParentError{Path: t.Path, ParentPath: t.ParentPath, Reason: "malformed parent path"}
		}
		if Dir(t.Path) != t.ParentPath {
			return treeerrors.InvalidParentError{
				Path:       t.Path,
				ParentPath: t.ParentPath,
				Reason:     "parent must be the path's directory " + Dir(t.Path),
			}
		}
	}
	if !IsValidType(t.Type) {
		return invalidField(t, "type", fmt.Sprintf("unknown type %q", t.Type))
	}
	if !IsValidStatus(t.Status, l.AllowCancelled) {
		return invalidField(t, "status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if t.Name == "" {
		return invalidField(t, "name", "name is required")
	}
	if n := utf8.RuneCountInString(t.Name); n > l.MaxNameLength {
		return invalidField(t, "name", fmt.Sprintf("%d characters exceeds %d", n, l.MaxNameLength))
	}
	if n := utf8.RuneCountInString(t.Description); n > l.MaxDescriptionLength {
		return invalidField(t, "description", fmt.Sprintf("%d characters exceeds %d", n, l.MaxDescriptionLength))
	}
	if len(t.Dependencies) > l.MaxDependencies {
		return invalidField(t, "dependencies", fmt.Sprintf("%d entries exceeds %d", len(t.Dependencies), l.MaxDependencies))
	}
	for _, dep := range t.Dependencies {
		if err := ValidatePath(dep, l.MaxPathDepth); err != nil {
			return invalidField(t, "dependencies", err.Error())
		}
	}
	categories := []struct {
		name  string
		notes []string
	}{
		{"notes.planning", t.Notes.Planning},
		{"notes.progress", t.Notes.Progress},
		{"notes.completion", t.Notes.Completion},
		{"notes.troubleshooting", t.Notes.Troubleshooting},
	}
	for _, c := range categories {
		if len(c.notes) > l.MaxNotes {
			return invalidField(t, c.name, fmt.Sprintf("%d notes exceeds %d", len(c.notes), l.MaxNotes))
		}
		for _, n := range c.notes {
			if utf8.RuneCountInString(n) > l.MaxNoteLength {
				return invalidField(t, c.name, fmt.Sprintf("note exceeds %d characters", l.MaxNoteLength))
			}
		}
	}
	return nil
}

func invalidField(t *Task, field, reason string) error {
	return treeerrors.InvalidFieldError{Path: t.Path, Field: field, Reason: reason}
}
