package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const dataDir = ".tasktree"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// FindProjectRoot walks up from cwd looking for a .git directory.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		info, err := os.Stat(filepath.Join(dir, ".git"))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", NotInRepoError{}
		}
		dir = parent
	}
}

// SanitizePath converts an absolute path to a safe directory name.
// "/Users/abatilo/myproject" -> "Users-abatilo-myproject"
func SanitizePath(path string) string {
	result := strings.TrimPrefix(path, "/")
	result = unsafeChars.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// DefaultDir returns the project-scoped data directory,
// ~/.tasktree/<sanitized-project-root>/.
func DefaultDir() (string, error) {
	root, err := FindProjectRoot()
	if err != nil {
		return "", err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dataDir, SanitizePath(root)), nil
}
