package adapter

import "fmt"

// FieldTracker enforces the field-tracking discipline of spec.md §4.6:
// every source path observed during a translation ends up in exactly one
// of mapped, unmapped, lost.
type FieldTracker struct {
	mapped   map[string]struct{}
	unmapped map[string]struct{}
	lost     map[string]struct{}
	order    []string // preserves first-seen order for deterministic reporting
}

// NewFieldTracker returns an empty tracker.
func NewFieldTracker() *FieldTracker {
	return &FieldTracker{
		mapped:   make(map[string]struct{}),
		unmapped: make(map[string]struct{}),
		lost:     make(map[string]struct{}),
	}
}

func (t *FieldTracker) remember(path string) {
	if _, seen := t.seenSomewhere(path); !seen {
		t.order = append(t.order, path)
	}
}

func (t *FieldTracker) seenSomewhere(path string) (string, bool) {
	if _, ok := t.mapped[path]; ok {
		return "mapped", true
	}
	if _, ok := t.unmapped[path]; ok {
		return "unmapped", true
	}
	if _, ok := t.lost[path]; ok {
		return "lost", true
	}
	return "", false
}

// MarkMapped records path as successfully mapped. Panics if path was
// already classified elsewhere — a bug in the calling adapter, not a
// runtime condition, since the totality invariant is enforced at
// translation-construction time.
func (t *FieldTracker) MarkMapped(path string) {
	t.assertUnclassified(path)
	t.remember(path)
	t.mapped[path] = struct{}{}
}

// MarkUnmapped records path as carried via the shadow extension bag.
func (t *FieldTracker) MarkUnmapped(path string) {
	t.assertUnclassified(path)
	t.remember(path)
	t.unmapped[path] = struct{}{}
}

// MarkLost records path as dropped, with an accompanying warning.
func (t *FieldTracker) MarkLost(path string) {
	t.assertUnclassified(path)
	t.remember(path)
	t.lost[path] = struct{}{}
}

func (t *FieldTracker) assertUnclassified(path string) {
	if class, seen := t.seenSomewhere(path); seen {
		panic(fmt.Sprintf("adapter: source path %q already classified as %s", path, class))
	}
}

// Mapped, Unmapped, Lost return the recorded paths in first-seen order.
func (t *FieldTracker) Mapped() []string   { return t.filter(t.mapped) }
func (t *FieldTracker) Unmapped() []string { return t.filter(t.unmapped) }
func (t *FieldTracker) Lost() []string     { return t.filter(t.lost) }

func (t *FieldTracker) filter(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, p := range t.order {
		if _, ok := set[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Totality reports whether every remembered path was classified exactly
// once (always true given the exclusive Mark* methods; kept as a cheap
// self-check the conformance test suite in §8 exercises).
func (t *FieldTracker) Totality() bool {
	for _, p := range t.order {
		count := 0
		if _, ok := t.mapped[p]; ok {
			count++
		}
		if _, ok := t.unmapped[p]; ok {
			count++
		}
		if _, ok := t.lost[p]; ok {
			count++
		}
		if count != 1 {
			return false
		}
	}
	return true
}
