//nolint:testpackage // Tests require internal access for thorough testing
package task

import (
	"strings"
	"testing"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
)

func TestIsValidStatus(t *testing.T) {
	tests := []struct {
		status         Status
		allowCancelled bool
		valid          bool
	}{
		{StatusPending, false, true},
		{StatusInProgress, false, true},
		{StatusCompleted, false, true},
		{StatusFailed, false, true},
		{StatusBlocked, false, true},
		{StatusCancelled, false, false},
		{StatusCancelled, true, true},
		{Status("invalid"), true, false},
		{Status(""), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsValidStatus(tt.status, tt.allowCancelled); got != tt.valid {
				t.Errorf("IsValidStatus(%q, %v) = %v, want %v", tt.status, tt.allowCancelled, got, tt.valid)
			}
		})
	}
}

func TestCanContain(t *testing.T) {
	tests := []struct {
		parent, child Type
		want          bool
	}{
		{TypeMilestone, TypeTask, true},
		{TypeMilestone, TypeGroup, true},
		{TypeMilestone, TypeMilestone, false},
		{TypeGroup, TypeTask, true},
		{TypeGroup, TypeGroup, false},
		{TypeGroup, TypeMilestone, false},
		{TypeTask, TypeTask, false},
		{TypeTask, TypeGroup, false},
		{TypeTask, TypeMilestone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.parent)+"->"+string(tt.child), func(t *testing.T) {
			if got := CanContain(tt.parent, tt.child); got != tt.want {
				t.Errorf("CanContain(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path  string
		valid bool
	}{
		{"proj", true},
		{"proj/m1/t1", true},
		{"a_b/c-d/e.f", true},
		{"", false},
		{"/proj", false},
		{"proj/", false},
		{"proj//t1", false},
		{"proj/../t1", false},
		{"proj/./t1", false},
		{"proj/t 1", false},
		{"proj/t1?", false},
		{"a/b/c/d/e/f/g/h", true},
		{"a/b/c/d/e/f/g/h/i", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path, 8)
			if (err == nil) != tt.valid {
				t.Errorf("ValidatePath(%q) error = %v, want valid=%v", tt.path, err, tt.valid)
			}
			if err != nil && treeerrors.KindOf(err) != treeerrors.KindInvalidPath {
				t.Errorf("ValidatePath(%q) kind = %s, want InvalidPath", tt.path, treeerrors.KindOf(err))
			}
		})
	}
}

func TestDirAndBase(t *testing.T) {
	if got := Dir("proj/m1/t1"); got != "proj/m1" {
		t.Errorf("Dir = %q, want proj/m1", got)
	}
	if got := Dir("proj"); got != "" {
		t.Errorf("Dir(root) = %q, want empty", got)
	}
	if got := Base("proj/m1/t1"); got != "t1" {
		t.Errorf("Base = %q, want t1", got)
	}
	if got := Depth("proj/m1/t1"); got != 3 {
		t.Errorf("Depth = %d, want 3", got)
	}
	if !IsDescendant("proj/m1/t1", "proj") || IsDescendant("project", "proj") {
		t.Error("IsDescendant should respect segment boundaries")
	}
}

func makeTask(path string) *Task {
	return &Task{Path: path, Name: "Task " + path, Type: TypeTask, Status: StatusPending}
}

func TestLimitsValidate(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name   string
		mutate func(*Task)
		kind   treeerrors.Kind
	}{
		{"valid", func(*Task) {}, ""},
		{"bad path", func(tk *Task) { tk.Path = "a//b" }, treeerrors.KindInvalidPath},
		{"parent mismatch", func(tk *Task) { tk.ParentPath = "other" }, treeerrors.KindInvalidParent},
		{"parent matches", func(tk *Task) { tk.ParentPath = "proj/m1" }, ""},
		{"unknown type", func(tk *Task) { tk.Type = "EPIC" }, treeerrors.KindInvalidField},
		{"unknown status", func(tk *Task) { tk.Status = "DONE" }, treeerrors.KindInvalidField},
		{"cancelled not allowed", func(tk *Task) { tk.Status = StatusCancelled }, treeerrors.KindInvalidField},
		{"empty name", func(tk *Task) { tk.Name = "" }, treeerrors.KindInvalidField},
		{"long name", func(tk *Task) { tk.Name = strings.Repeat("n", 201) }, treeerrors.KindInvalidField},
		{"long description", func(tk *Task) { tk.Description = strings.Repeat("d", 2001) }, treeerrors.KindInvalidField},
		{"too many notes", func(tk *Task) { tk.Notes.Progress = make([]string, 101) }, treeerrors.KindInvalidField},
		{"long note", func(tk *Task) { tk.Notes.Planning = []string{strings.Repeat("x", 1001)} }, treeerrors.KindInvalidField},
		{"bad dependency path", func(tk *Task) { tk.Dependencies = []string{"a b"} }, treeerrors.KindInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := makeTask("proj/m1/t1")
			tt.mutate(tk)
			err := limits.Validate(tk)
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if got := treeerrors.KindOf(err); got != tt.kind {
				t.Errorf("Validate() kind = %s (err %v), want %s", got, err, tt.kind)
			}
		})
	}
}

func TestTooManyDependencies(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxDependencies = 2
	tk := makeTask("t")
	tk.Dependencies = []string{"a", "b", "c"}
	if err := limits.Validate(tk); treeerrors.KindOf(err) != treeerrors.KindInvalidField {
		t.Errorf("Validate() error = %v, want InvalidField", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := makeTask("a")
	orig.Dependencies = []string{"b"}
	orig.Metadata.Custom = map[string]any{"k": "v"}
	orig.Notes.Planning = []string{"plan"}

	c := orig.Clone()
	c.Dependencies[0] = "changed"
	c.Metadata.Custom["k"] = "changed"
	c.Notes.Planning[0] = "changed"

	if orig.Dependencies[0] != "b" || orig.Metadata.Custom["k"] != "v" || orig.Notes.Planning[0] != "plan" {
		t.Errorf("Clone shares state with original: %+v", orig)
	}
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"", "anything/at/all", true},
		{"proj/m1", "proj/m1", true},
		{"proj/m1", "proj/m1/t1", true},
		{"proj/m1", "proj/m2", false},
		{"proj/*", "proj/m1", true},
		{"proj/*", "proj/m1/t1", false},
		{"proj/**", "proj/m1/t1", true},
		{"proj/*/t?", "proj/m1/t1", true},
		{"proj/*/t?", "proj/m1/t10", false},
		{"proj/{m1,m2}", "proj/m2", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.path, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			if err != nil {
				t.Fatalf("CompilePattern(%q) error = %v", tt.pattern, err)
			}
			if got := p.Match(tt.path); got != tt.want {
				t.Errorf("Pattern(%q).Match(%q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestCreateInputDefaults(t *testing.T) {
	tk := CreateTaskInput{Path: "a", Name: "A"}.Task()
	if tk.Type != TypeTask || tk.Status != StatusPending {
		t.Errorf("defaults = %s/%s, want TASK/PENDING", tk.Type, tk.Status)
	}
}

func TestUpdateInputApply(t *testing.T) {
	orig := makeTask("a")
	orig.Notes.Progress = []string{"first"}

	status := StatusInProgress
	deps := []string{"b"}
	updated := UpdateTaskInput{
		Status:       &status,
		Dependencies: &deps,
		Notes:        &Notes{Progress: []string{"second"}},
	}.Apply(orig)

	if updated.Status != StatusInProgress {
		t.Errorf("Status = %s, want IN_PROGRESS", updated.Status)
	}
	if len(updated.Dependencies) != 1 || updated.Dependencies[0] != "b" {
		t.Errorf("Dependencies = %v, want [b]", updated.Dependencies)
	}
	if len(updated.Notes.Progress) != 2 || updated.Notes.Progress[1] != "second" {
		t.Errorf("Notes.Progress = %v, want [first second]", updated.Notes.Progress)
	}
	if orig.Status != StatusPending || len(orig.Notes.Progress) != 1 {
		t.Error("Apply mutated the original task")
	}
	if updated.Name != orig.Name {
		t.Errorf("Name = %q, want unchanged %q", updated.Name, orig.Name)
	}
}
