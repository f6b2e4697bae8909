package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
	"github.com/abatilo/tasktree/internal/task"
)

const (
	fileExt    = ".md"
	tempPrefix = ".tmp-"
)

// Markdown stores one markdown file per task under a base directory,
// mirroring the task path: "proj/api/auth" lives in proj/api/auth.md.
type Markdown struct {
	basePath string
	// mu serializes writers in this process so staged renames do not interleave.
	mu sync.Mutex
}

var _ Backend = (*Markdown)(nil)

// NewMarkdown creates a Markdown backend rooted at basePath.
func NewMarkdown(basePath string) *Markdown {
	return &Markdown{basePath: basePath}
}

// BasePath returns the base path of the store.
func (m *Markdown) BasePath() string {
	return m.basePath
}

// IsInitialized checks if the base directory exists.
func (m *Markdown) IsInitialized() bool {
	info, err := os.Stat(m.basePath)
	return err == nil && info.IsDir()
}

// Init creates the base directory.
func (m *Markdown) Init(force bool) error {
	if m.IsInitialized() && !force {
		return AlreadyInitializedError{Path: m.basePath}
	}
	return os.MkdirAll(m.basePath, 0o755)
}

func (m *Markdown) taskFile(path string) string {
	return filepath.Join(m.basePath, filepath.FromSlash(path)+fileExt)
}

func (m *Markdown) GetTask(ctx context.Context, path string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(m.taskFile(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, treeerrors.TaskNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	t, err := ParseMarkdown(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

// SaveTasks writes every task to a temp file next to its target first and
// renames them into place only once all of them were written.
func (m *Markdown) SaveTasks(ctx context.Context, tasks []*task.Task) error {
	if !m.IsInitialized() {
		return NotInitializedError{Path: m.basePath}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	type staged struct {
		tmp, dst string
	}
	var files []staged
	cleanup := func() {
		for _, f := range files {
			_ = os.Remove(f.tmp)
		}
	}

	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		content, err := SerializeMarkdown(t)
		if err != nil {
			cleanup()
			return fmt.Errorf("serializing %s: %w", t.Path, err)
		}
		dst := m.taskFile(t.Path)
		tmp, err := writeTemp(filepath.Dir(dst), content)
		if err != nil {
			cleanup()
			return fmt.Errorf("writing %s: %w", t.Path, err)
		}
		files = append(files, staged{tmp: tmp, dst: dst})
	}

	for i, f := range files {
		if err := os.Rename(f.tmp, f.dst); err != nil {
			for _, rest := range files[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("renaming %s: %w", f.dst, err)
		}
	}
	return nil
}

func writeTemp(dir string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (m *Markdown) DeleteTasks(ctx context.Context, paths []string) error {
	if !m.IsInitialized() {
		return NotInitializedError{Path: m.basePath}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := os.Remove(m.taskFile(p))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("deleting %s: %w", p, err)
		}
	}
	return nil
}

func (m *Markdown) GetTasksByPattern(ctx context.Context, pattern string) ([]*task.Task, error) {
	p, err := task.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return m.list(ctx, func(t *task.Task) bool { return p.Match(t.Path) })
}

func (m *Markdown) GetTasksByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	return m.list(ctx, func(t *task.Task) bool { return t.Status == status })
}

func (m *Markdown) GetSubtasks(ctx context.Context, parentPath string) ([]*task.Task, error) {
	return m.list(ctx, func(t *task.Task) bool { return t.ParentPath == parentPath })
}

func (m *Markdown) Close() error {
	return nil
}

// list walks the base directory. Malformed files are skipped.
func (m *Markdown) list(ctx context.Context, keep func(*task.Task) bool) ([]*task.Task, error) {
	if !m.IsInitialized() {
		return nil, NotInitializedError{Path: m.basePath}
	}

	var tasks []*task.Task
	err := filepath.WalkDir(m.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// Staged temp files carry no extension and are skipped here.
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		t, err := ParseMarkdown(content)
		if err != nil {
			return nil
		}
		if keep(t) {
			tasks = append(tasks, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	task.SortByPath(tasks)
	return tasks, nil
}
