package storage

import "fmt"

// NotInitializedError indicates the backend location has not been created with init.
type NotInitializedError struct {
	Path string
}

func (e NotInitializedError) Error() string {
	return fmt.Sprintf("task store not initialized at %s (run 'tasktree init')", e.Path)
}

// AlreadyInitializedError indicates init was run twice without force.
type AlreadyInitializedError struct {
	Path string
}

func (e AlreadyInitializedError) Error() string {
	return fmt.Sprintf("task store already initialized at %s", e.Path)
}

// NotInRepoError indicates no project root was found above the working directory.
type NotInRepoError struct{}

func (e NotInRepoError) Error() string {
	return "not in a git repository (set backend.path to choose a location)"
}

// parseError represents a malformed task file.
type parseError struct {
	msg string
}

func (e *parseError) Error() string {
	return e.msg
}
