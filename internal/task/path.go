package task

import (
	"regexp"
	"strings"

	treeerrors "github.com/abatilo/tasktree/internal/errors"
)

// PathSeparator separates path segments.
const PathSeparator = "/"

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidatePath checks the character set, segment shape, and depth of a path.
func ValidatePath(path string, maxDepth int) error {
	if path == "" {
		return treeerrors.InvalidPathError{Path: path, Reason: "path is empty"}
	}
	segments := strings.Split(path, PathSeparator)
	if maxDepth > 0 && len(segments) > maxDepth {
		return treeerrors.InvalidPathError{Path: path, Reason: "too many segments"}
	}
	for _, seg := range segments {
		switch {
		case seg == "":
			return treeerrors.InvalidPathError{Path: path, Reason: "empty segment"}
		case seg == "." || seg == "..":
			return treeerrors.InvalidPathError{Path: path, Reason: "relative segment " + seg}
		case !segmentPattern.MatchString(seg):
			return treeerrors.InvalidPathError{Path: path, Reason: "segment " + seg + " has invalid characters"}
		}
	}
	return nil
}

// Depth returns the number of segments in a path.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, PathSeparator) + 1
}

// Dir returns the path without its last segment, or "" for a single-segment path.
// "proj/m1/t1" -> "proj/m1"
func Dir(path string) string {
	i := strings.LastIndex(path, PathSeparator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the last segment of a path.
func Base(path string) string {
	return path[strings.LastIndex(path, PathSeparator)+1:]
}

// IsDescendant reports whether path lies strictly below ancestor.
func IsDescendant(path, ancestor string) bool {
	return strings.HasPrefix(path, ancestor+PathSeparator)
}
