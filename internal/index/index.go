// Package index maintains derived lookup views over tasks: by path (prefix and
// glob), by parent, by status, and the reverse dependents-of relation.
// It never owns task content; lookups return lightweight Refs.
package index

import (
	"slices"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix/v2"

	"github.com/abatilo/tasktree/internal/task"
)

// Ref is the minimal view of a task the store needs to route reads.
type Ref struct {
	Path         string
	ParentPath   string
	Type         task.Type
	Status       task.Status
	Dependencies []string
	Version      int
}

// RefOf extracts a Ref from a task.
func RefOf(t *task.Task) Ref {
	return Ref{
		Path:         t.Path,
		ParentPath:   t.ParentPath,
		Type:         t.Type,
		Status:       t.Status,
		Dependencies: slices.Clone(t.Dependencies),
		Version:      t.Version,
	}
}

type pathSet map[string]struct{}

// Manager holds the four views. It is safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	paths      *iradix.Tree[Ref]
	byParent   map[string]pathSet
	byStatus   map[task.Status]pathSet
	dependents map[string]pathSet
	complete   bool
}

// New creates an empty index.
func New() *Manager {
	return &Manager{
		paths:      iradix.New[Ref](),
		byParent:   make(map[string]pathSet),
		byStatus:   make(map[task.Status]pathSet),
		dependents: make(map[string]pathSet),
	}
}

// IndexTask adds or replaces the entries for a task.
func (m *Manager) IndexTask(t *task.Task) {
	m.IndexRef(RefOf(t))
}

// IndexRef adds or replaces the entries for a ref.
func (m *Manager) IndexRef(ref Ref) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ref.Path)
	m.paths, _, _ = m.paths.Insert([]byte(ref.Path), ref)
	if ref.ParentPath != "" {
		add(m.byParent, ref.ParentPath, ref.Path)
	}
	add(m.byStatus, ref.Status, ref.Path)
	for _, dep := range ref.Dependencies {
		add(m.dependents, dep, ref.Path)
	}
}

// UnindexTask removes every entry contributed by the task at path.
// The dependents recorded against path by other tasks are kept: they
// still reference it until those tasks change.
func (m *Manager) UnindexTask(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(path)
}

func (m *Manager) removeLocked(path string) {
	var (
		old Ref
		ok  bool
	)
	m.paths, old, ok = m.paths.Delete([]byte(path))
	if !ok {
		return
	}
	if old.ParentPath != "" {
		remove(m.byParent, old.ParentPath, path)
	}
	remove(m.byStatus, old.Status, path)
	for _, dep := range old.Dependencies {
		remove(m.dependents, dep, path)
	}
}

// Lookup returns the ref for a path.
func (m *Manager) Lookup(path string) (Ref, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths.Get([]byte(path))
}

// ByPattern returns refs whose path matches the pattern, sorted by path.
func (m *Manager) ByPattern(p *task.Pattern) []Ref {
	m.mu.RLock()
	tree := m.paths
	m.mu.RUnlock()

	var refs []Ref
	tree.Root().WalkPrefix([]byte(p.Prefix()), func(k []byte, v Ref) bool {
		if p.Match(string(k)) {
			refs = append(refs, v)
		}
		return false
	})
	return refs
}

// ByStatus returns refs with the given status, sorted by path.
func (m *Manager) ByStatus(status task.Status) []Ref {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refsLocked(m.byStatus[status])
}

// Children returns refs of the direct children of parentPath, sorted by path.
func (m *Manager) Children(parentPath string) []Ref {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refsLocked(m.byParent[parentPath])
}

// ChildPaths returns the sorted paths of the direct children of parentPath.
func (m *Manager) ChildPaths(parentPath string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.byParent[parentPath])
}

// Dependents returns the sorted paths of tasks that list path as a dependency.
func (m *Manager) Dependents(path string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.dependents[path])
}

// Len returns the number of indexed tasks.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths.Len()
}

// Complete reports whether the index holds every task in the backing store.
func (m *Manager) Complete() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.complete
}

// SetComplete marks whether the index mirrors the whole backing store.
func (m *Manager) SetComplete(complete bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.complete = complete
}

// Clear drops every entry and marks the index incomplete.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = iradix.New[Ref]()
	m.byParent = make(map[string]pathSet)
	m.byStatus = make(map[task.Status]pathSet)
	m.dependents = make(map[string]pathSet)
	m.complete = false
}

// Snapshot captures the index so it can be restored later.
type Snapshot struct {
	refs     []Ref
	complete bool
}

// Snapshot returns the current contents. The radix tree is immutable, so
// this is a cheap walk rather than a deep copy of shared state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	tree, complete := m.paths, m.complete
	m.mu.RUnlock()

	refs := make([]Ref, 0, tree.Len())
	tree.Root().Walk(func(_ []byte, v Ref) bool {
		refs = append(refs, v)
		return false
	})
	return Snapshot{refs: refs, complete: complete}
}

// Restore replaces the contents with a snapshot.
func (m *Manager) Restore(s Snapshot) {
	m.Clear()
	for _, ref := range s.refs {
		m.IndexRef(ref)
	}
	m.SetComplete(s.complete)
}

func (m *Manager) refsLocked(set pathSet) []Ref {
	refs := make([]Ref, 0, len(set))
	for _, p := range sortedKeys(set) {
		if ref, ok := m.paths.Get([]byte(p)); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func add[K comparable](m map[K]pathSet, key K, path string) {
	set, ok := m[key]
	if !ok {
		set = make(pathSet)
		m[key] = set
	}
	set[path] = struct{}{}
}

func remove[K comparable](m map[K]pathSet, key K, path string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, path)
	if len(set) == 0 {
		delete(m, key)
	}
}

func sortedKeys(set pathSet) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
