//nolint:testpackage // Tests require internal access for thorough testing
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/abatilo/tasktree/internal/task"
)

func TestParseMarkdown(t *testing.T) {
	content := []byte(`---
path: proj/api
name: API work
type: GROUP
status: IN_PROGRESS
parent_path: proj
subtasks:
  - proj/api/auth
dependencies:
  - proj/design
  - proj/infra
metadata:
  priority: high
  technical:
    language: go
notes:
  progress:
    - started
created: 2024-01-15T10:30:00Z
updated: 2024-01-16T08:00:00.5Z
version: 3
---

This is the description.
`)

	got, err := ParseMarkdown(content)
	if err != nil {
		t.Fatalf("ParseMarkdown failed: %v", err)
	}

	want := &task.Task{
		Path:         "proj/api",
		Name:         "API work",
		Description:  "This is the description.",
		Type:         task.TypeGroup,
		Status:       task.StatusInProgress,
		ParentPath:   "proj",
		Subtasks:     []string{"proj/api/auth"},
		Dependencies: []string{"proj/design", "proj/infra"},
		Metadata: task.Metadata{
			Priority:  "high",
			Technical: task.Technical{Language: "go"},
		},
		Notes:   task.Notes{Progress: []string{"started"}},
		Created: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Updated: time.Date(2024, 1, 16, 8, 0, 0, 500_000_000, time.UTC),
		Version: 3,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseMarkdown mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMarkdownErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "just text\n"},
		{"unclosed", "---\npath: a\n"},
		{"bad yaml", "---\npath: [a\n---\n"},
		{"missing path", "---\nname: x\ncreated: 2024-01-01\nupdated: 2024-01-01\n---\n"},
		{"bad time", "---\npath: a\ncreated: yesterday\nupdated: 2024-01-01\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMarkdown([]byte(tt.content)); err == nil {
				t.Errorf("ParseMarkdown(%q) expected error", tt.content)
			}
		})
	}
}

func TestSerializeMarkdownRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 123, time.UTC)
	orig := &task.Task{
		Path:         "proj/a",
		Name:         "Task A",
		Description:  "Description here\n\nwith paragraphs",
		Type:         task.TypeTask,
		Status:       task.StatusBlocked,
		ParentPath:   "proj",
		Dependencies: []string{"proj/b"},
		Metadata: task.Metadata{
			BlockedBy:     []string{"proj/b"},
			BlockedReason: "dependency proj/b is FAILED",
			Custom:        map[string]any{"owner": "ops"},
		},
		Notes:   task.Notes{Planning: []string{"one", "two"}},
		Created: now,
		Updated: now.Add(time.Hour),
		Version: 2,
	}

	data, err := SerializeMarkdown(orig)
	if err != nil {
		t.Fatalf("SerializeMarkdown failed: %v", err)
	}
	parsed, err := ParseMarkdown(data)
	if err != nil {
		t.Fatalf("ParseMarkdown failed: %v", err)
	}
	if diff := cmp.Diff(orig, parsed, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLikePrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "%"},
		{"proj/", "proj/%"},
		{"my_proj", `my\_proj%`},
		{`50%\x`, `50\%\\x%`},
	}
	for _, tt := range tests {
		if got := likePrefix(tt.in); got != tt.want {
			t.Errorf("likePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple path", "/Users/abatilo/myproject", "Users-abatilo-myproject"},
		{"path with spaces", "/Users/john doe/my project", "Users-john-doe-my-project"},
		{"path with special chars", "/home/user/my.project-v2", "home-user-my-project-v2"},
		{"root path", "/", ""},
		{"trailing slash", "/Users/abatilo/project/", "Users-abatilo-project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePath(tt.input); got != tt.want {
				t.Errorf("SanitizePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve symlinks: %v", err)
	}

	child := filepath.Join(tmpDir, "repo", "child")
	if err = os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("Failed to create directories: %v", err)
	}

	t.Run("finds .git in parent directory", func(t *testing.T) {
		repo := filepath.Join(tmpDir, "repo")
		gitDir := filepath.Join(repo, ".git")
		if err := os.Mkdir(gitDir, 0o755); err != nil { //nolint:govet // Intentional shadow in subtest
			t.Fatalf("Failed to create .git: %v", err)
		}
		defer os.RemoveAll(gitDir)

		t.Chdir(child)

		root, err := FindProjectRoot() //nolint:govet // Intentional shadow in subtest
		if err != nil {
			t.Fatalf("FindProjectRoot() error = %v", err)
		}
		if root != repo {
			t.Errorf("FindProjectRoot() = %q, want %q", root, repo)
		}

		home, _ := os.UserHomeDir()
		dir, err := DefaultDir()
		if err != nil {
			t.Fatalf("DefaultDir() error = %v", err)
		}
		if want := filepath.Join(home, ".tasktree", SanitizePath(repo)); dir != want {
			t.Errorf("DefaultDir() = %q, want %q", dir, want)
		}
	})

	t.Run("returns error when no .git found", func(t *testing.T) {
		t.Chdir(child)

		_, err := FindProjectRoot() //nolint:govet // Intentional shadow in subtest
		var notInRepo NotInRepoError
		if !errors.As(err, &notInRepo) {
			t.Errorf("FindProjectRoot() error = %v, want NotInRepoError", err)
		}
	})
}
