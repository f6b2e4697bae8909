package storage

import (
	"bytes"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abatilo/tasktree/internal/task"
)

const frontmatterDelimiter = "---"

// taskFrontmatter is the YAML-serializable portion of a task.
type taskFrontmatter struct {
	Path         string        `yaml:"path"`
	Name         string        `yaml:"name"`
	Type         task.Type     `yaml:"type"`
	Status       task.Status   `yaml:"status"`
	ParentPath   string        `yaml:"parent_path,omitempty"`
	Subtasks     []string      `yaml:"subtasks,omitempty"`
	Dependencies []string      `yaml:"dependencies,omitempty"`
	Metadata     task.Metadata `yaml:"metadata,omitempty"`
	Notes        task.Notes    `yaml:"notes,omitempty"`
	Created      string        `yaml:"created"`
	Updated      string        `yaml:"updated"`
	Version      int           `yaml:"version"`
}

// ParseMarkdown parses a markdown file with YAML frontmatter into a Task.
func ParseMarkdown(content []byte) (*task.Task, error) {
	lines := strings.Split(string(content), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != frontmatterDelimiter {
		return nil, &parseError{"missing YAML frontmatter"}
	}

	var frontmatterEnd int
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelimiter {
			frontmatterEnd = i
			break
		}
	}
	if frontmatterEnd == 0 {
		return nil, &parseError{"unclosed YAML frontmatter"}
	}

	yamlContent := strings.Join(lines[1:frontmatterEnd], "\n")
	var fm taskFrontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return nil, &parseError{"invalid YAML: " + err.Error()}
	}
	if fm.Path == "" {
		return nil, &parseError{"missing path"}
	}

	created, err := parseTime(fm.Created)
	if err != nil {
		return nil, &parseError{"invalid created: " + err.Error()}
	}
	updated, err := parseTime(fm.Updated)
	if err != nil {
		return nil, &parseError{"invalid updated: " + err.Error()}
	}

	// Everything after the frontmatter is the description.
	var description string
	if frontmatterEnd+1 < len(lines) {
		description = strings.TrimSpace(strings.Join(lines[frontmatterEnd+1:], "\n"))
	}

	return &task.Task{
		Path:         fm.Path,
		Name:         fm.Name,
		Description:  description,
		Type:         fm.Type,
		Status:       fm.Status,
		ParentPath:   fm.ParentPath,
		Subtasks:     fm.Subtasks,
		Dependencies: fm.Dependencies,
		Metadata:     fm.Metadata,
		Notes:        fm.Notes,
		Created:      created,
		Updated:      updated,
		Version:      fm.Version,
	}, nil
}

// SerializeMarkdown converts a Task to markdown with YAML frontmatter.
func SerializeMarkdown(t *task.Task) ([]byte, error) {
	fm := taskFrontmatter{
		Path:         t.Path,
		Name:         t.Name,
		Type:         t.Type,
		Status:       t.Status,
		ParentPath:   t.ParentPath,
		Subtasks:     t.Subtasks,
		Dependencies: t.Dependencies,
		Metadata:     t.Metadata,
		Notes:        t.Notes,
		Created:      t.Created.UTC().Format(time.RFC3339Nano),
		Updated:      t.Updated.UTC().Format(time.RFC3339Nano),
		Version:      t.Version,
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelimiter + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	buf.WriteString(frontmatterDelimiter + "\n")

	if t.Description != "" {
		buf.WriteString("\n")
		buf.WriteString(t.Description)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// parseTime tries to parse a time string in common formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &parseError{"unrecognized time format"}
}
