package task

import (
	"maps"
	"slices"
)

// CreateTaskInput carries an already schema-checked creation request.
type CreateTaskInput struct {
	Path         string   `yaml:"path" json:"path"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Type         Type     `yaml:"type,omitempty" json:"type,omitempty"`
	Status       Status   `yaml:"status,omitempty" json:"status,omitempty"`
	ParentPath   string   `yaml:"parent_path,omitempty" json:"parentPath,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Metadata     Metadata `yaml:"metadata,omitempty" json:"metadata"`
	Notes        Notes    `yaml:"notes,omitempty" json:"notes"`
}

// Task builds the new task described by the input. Server-assigned fields are left zero.
func (in CreateTaskInput) Task() *Task {
	t := &Task{
		Path:         in.Path,
		Name:         in.Name,
		Description:  in.Description,
		Type:         in.Type,
		Status:       in.Status,
		ParentPath:   in.ParentPath,
		Dependencies: slices.Clone(in.Dependencies),
		Metadata:     in.Metadata,
		Notes:        in.Notes,
	}
	if t.Type == "" {
		t.Type = TypeTask
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	// Clone detaches slices and maps shared with the input.
	return t.Clone()
}

// UpdateTaskInput carries a partial update. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Name         *string   `yaml:"name,omitempty" json:"name,omitempty"`
	Description  *string   `yaml:"description,omitempty" json:"description,omitempty"`
	Type         *Type     `yaml:"type,omitempty" json:"type,omitempty"`
	Status       *Status   `yaml:"status,omitempty" json:"status,omitempty"`
	ParentPath   *string   `yaml:"parent_path,omitempty" json:"parentPath,omitempty"`
	Dependencies *[]string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Metadata     *Metadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Notes        *Notes    `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Apply returns a copy of t with the update applied. Notes are appended per category.
func (in UpdateTaskInput) Apply(t *Task) *Task {
	c := t.Clone()
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.ParentPath != nil {
		c.ParentPath = *in.ParentPath
	}
	if in.Dependencies != nil {
		c.Dependencies = slices.Clone(*in.Dependencies)
	}
	if in.Metadata != nil {
		c.Metadata = *in.Metadata
		c.Metadata.BlockedBy = slices.Clone(in.Metadata.BlockedBy)
		c.Metadata.Technical.Requirements = slices.Clone(in.Metadata.Technical.Requirements)
		c.Metadata.Custom = maps.Clone(in.Metadata.Custom)
	}
	if in.Notes != nil {
		c.Notes.Planning = append(c.Notes.Planning, in.Notes.Planning...)
		c.Notes.Progress = append(c.Notes.Progress, in.Notes.Progress...)
		c.Notes.Completion = append(c.Notes.Completion, in.Notes.Completion...)
		c.Notes.Troubleshooting = append(c.Notes.Troubleshooting, in.Notes.Troubleshooting...)
	}
	return c
}
