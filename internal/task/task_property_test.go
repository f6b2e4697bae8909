package task

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func genSegment(t *rapid.T, label string) string {
	return rapid.StringMatching(`[A-Za-z0-9_-][A-Za-z0-9_.-]{0,11}`).Draw(t, label)
}

func genPath(t *rapid.T, maxDepth int) string {
	n := rapid.IntRange(1, maxDepth).Draw(t, "depth")
	segs := make([]string, n)
	for i := range segs {
		segs[i] = genSegment(t, "segment")
	}
	return strings.Join(segs, PathSeparator)
}

// Generated paths within the depth limit always validate, and Dir/Base reassemble them.
func TestPathProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genPath(t, defaultMaxPathDepth)
		if err := ValidatePath(p, defaultMaxPathDepth); err != nil {
			t.Fatalf("ValidatePath(%q) = %v", p, err)
		}
		if dir := Dir(p); dir != "" && dir+PathSeparator+Base(p) != p {
			t.Fatalf("Dir/Base do not reassemble %q", p)
		}
		if Depth(p) > defaultMaxPathDepth {
			t.Fatalf("Depth(%q) = %d", p, Depth(p))
		}
	})
}

// Only MILESTONE->TASK, MILESTONE->GROUP and GROUP->TASK are legal pairings.
func TestHierarchyProperty(t *testing.T) {
	types := []Type{TypeTask, TypeMilestone, TypeGroup}
	allowed := map[[2]Type]bool{
		{TypeMilestone, TypeTask}:  true,
		{TypeMilestone, TypeGroup}: true,
		{TypeGroup, TypeTask}:      true,
	}
	rapid.Check(t, func(t *rapid.T) {
		parent := rapid.SampledFrom(types).Draw(t, "parent")
		child := rapid.SampledFrom(types).Draw(t, "child")
		if got, want := CanContain(parent, child), allowed[[2]Type{parent, child}]; got != want {
			t.Fatalf("CanContain(%s, %s) = %v, want %v", parent, child, got, want)
		}
	})
}
