package task

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

const globMeta = "*?[{"

// Pattern selects task paths either by raw prefix or by glob.
// In a glob, '*' stays within one segment and '**' crosses segments.
type Pattern struct {
	raw    string
	prefix string
	glob   glob.Glob
}

// CompilePattern parses a prefix or glob pattern. The empty pattern matches everything.
func CompilePattern(p string) (*Pattern, error) {
	i := strings.IndexAny(p, globMeta)
	if i < 0 {
		return &Pattern{raw: p, prefix: p}, nil
	}
	g, err := glob.Compile(p, '/')
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", p, err)
	}
	return &Pattern{raw: p, prefix: p[:i], glob: g}, nil
}

// String returns the pattern as written.
func (p *Pattern) String() string {
	return p.raw
}

// Prefix returns the literal prefix every match starts with.
func (p *Pattern) Prefix() string {
	return p.prefix
}

// IsGlob reports whether the pattern needs glob matching beyond its prefix.
func (p *Pattern) IsGlob() bool {
	return p.glob != nil
}

// Match reports whether path is selected by the pattern.
func (p *Pattern) Match(path string) bool {
	if !strings.HasPrefix(path, p.prefix) {
		return false
	}
	if p.glob == nil {
		return true
	}
	return p.glob.Match(path)
}
