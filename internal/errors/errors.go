//nolint:revive // Package name intentionally matches stdlib for domain clarity
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error so callers can react without matching concrete types.
type Kind string

const (
	KindUnknown                 Kind = "Unknown"
	KindInvalidPath             Kind = "InvalidPath"
	KindInvalidParent           Kind = "InvalidParent"
	KindInvalidHierarchy        Kind = "InvalidHierarchy"
	KindInvalidField            Kind = "InvalidField"
	KindNotFound                Kind = "NotFound"
	KindAlreadyExists           Kind = "AlreadyExists"
	KindDependencySelf          Kind = "DependencySelf"
	KindDependencyDuplicate     Kind = "DependencyDuplicate"
	KindDependencyMissing       Kind = "DependencyMissing"
	KindDependencyCycle         Kind = "DependencyCycle"
	KindDependencyDepthExceeded Kind = "DependencyDepthExceeded"
	KindStatusTransitionInvalid Kind = "StatusTransitionInvalid"
	KindDeletionBlocked         Kind = "DeletionBlocked"
	KindStorageFailure          Kind = "StorageFailure"
)

// InvalidPathError indicates a malformed or too-deep task path.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// InvalidParentError indicates a parent path that is missing or does not match the task path.
type InvalidParentError struct {
	Path       string
	ParentPath string
	Reason     string
}

func (e InvalidParentError) Error() string {
	return fmt.Sprintf("invalid parent %q for task %s: %s", e.ParentPath, e.Path, e.Reason)
}

// InvalidHierarchyError indicates a parent type that may not contain the child type.
type InvalidHierarchyError struct {
	Path       string
	Type       string
	ParentPath string
	ParentType string
}

func (e InvalidHierarchyError) Error() string {
	return fmt.Sprintf("%s %s cannot be a child of %s %s", e.Type, e.Path, e.ParentType, e.ParentPath)
}

// InvalidFieldError indicates a field value outside its allowed set or length.
type InvalidFieldError struct {
	Path   string
	Field  string
	Reason string
}

func (e InvalidFieldError) Error() string {
	return fmt.Sprintf("task %s: invalid %s: %s", e.Path, e.Field, e.Reason)
}

// TaskNotFoundError indicates no task exists at the path.
type TaskNotFoundError struct {
	Path string
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.Path)
}

// AlreadyExistsError indicates a path collision on create.
type AlreadyExistsError struct {
	Path string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("task already exists: %s", e.Path)
}

// SelfDependencyError indicates a task lists itself as a dependency.
type SelfDependencyError struct {
	Path string
}

func (e SelfDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.Path)
}

// DuplicateDependencyError indicates the same dependency appears more than once.
type DuplicateDependencyError struct {
	Path       string
	Dependency string
}

func (e DuplicateDependencyError) Error() string {
	return fmt.Sprintf("task %s lists dependency %s more than once", e.Path, e.Dependency)
}

// MissingDependencyError indicates a dependency that does not resolve to a task.
type MissingDependencyError struct {
	Path       string
	Dependency string
}

func (e MissingDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on missing task %s", e.Path, e.Dependency)
}

// CycleError indicates the dependency graph would contain a cycle.
// Cycle starts and ends with the same path.
type CycleError struct {
	Cycle []string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// DepthExceededError indicates traversal gave up before proving the graph acyclic.
type DepthExceededError struct {
	Path     string
	MaxDepth int
}

func (e DepthExceededError) Error() string {
	return fmt.Sprintf("dependency chain from %s exceeds maximum depth %d", e.Path, e.MaxDepth)
}

// StatusTransitionError indicates dependencies forbid the requested status.
type StatusTransitionError struct {
	Path        string
	From        string
	To          string
	Outstanding []string
}

func (e StatusTransitionError) Error() string {
	return fmt.Sprintf("task %s cannot move from %s to %s: dependencies %v", e.Path, e.From, e.To, e.Outstanding)
}

// DeletionBlockedError indicates dependents in progress prevent deletion.
type DeletionBlockedError struct {
	Path       string
	Dependents []string
}

func (e DeletionBlockedError) Error() string {
	return fmt.Sprintf("task %s has dependents in progress: %v", e.Path, e.Dependents)
}

// StorageError wraps a failure returned by the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first typed error found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		invalidPath   InvalidPathError
		invalidParent InvalidParentError
		hierarchy     InvalidHierarchyError
		field         InvalidFieldError
		notFound      TaskNotFoundError
		exists        AlreadyExistsError
		self          SelfDependencyError
		duplicate     DuplicateDependencyError
		missing       MissingDependencyError
		cycle         CycleError
		depth         DepthExceededError
		transition    StatusTransitionError
		deletion      DeletionBlockedError
		storage       StorageError
	)
	switch {
	// Storage is checked first: a backend may wrap TaskNotFoundError.
	case errors.As(err, &storage):
		return KindStorageFailure
	case errors.As(err, &invalidPath):
		return KindInvalidPath
	case errors.As(err, &invalidParent):
		return KindInvalidParent
	case errors.As(err, &hierarchy):
		return KindInvalidHierarchy
	case errors.As(err, &field):
		return KindInvalidField
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &exists):
		return KindAlreadyExists
	case errors.As(err, &self):
		return KindDependencySelf
	case errors.As(err, &duplicate):
		return KindDependencyDuplicate
	case errors.As(err, &missing):
		return KindDependencyMissing
	case errors.As(err, &cycle):
		return KindDependencyCycle
	case errors.As(err, &depth):
		return KindDependencyDepthExceeded
	case errors.As(err, &transition):
		return KindStatusTransitionInvalid
	case errors.As(err, &deletion):
		return KindDeletionBlocked
	default:
		return KindUnknown
	}
}

// IsNotFound reports whether err means the task does not exist.
func IsNotFound(err error) bool {
	var notFound TaskNotFoundError
	return errors.As(err, &notFound)
}

// IsTransient reports whether retrying the operation may succeed.
// Only backing-store failures qualify; validation errors never do.
func IsTransient(err error) bool {
	return KindOf(err) == KindStorageFailure
}
