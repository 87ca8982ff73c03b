package crdt

import (
	"reflect"
	"sort"
	"testing"
)

func sortedElements(s *GSet) []string {
	e := s.Elements()
	sort.Strings(e)
	return e
}

func TestGSetAddContains(t *testing.T) {
	s := NewGSet()
	s.Add("a")
	if !s.Contains("a") {
		t.Fatalf("expected a to be present")
	}
	if s.Contains("b") {
		t.Fatalf("b should not be present")
	}
}

func TestGSetMergeCommutative(t *testing.T) {
	a := NewGSet()
	a.Add("x")
	b := NewGSet()
	b.Add("y")

	ab := sortedElements(a.Merge(b))
	ba := sortedElements(b.Merge(a))
	if !reflect.DeepEqual(ab, ba) {
		t.Fatalf("merge not commutative: %v vs %v", ab, ba)
	}
}

func TestGSetMergeAssociative(t *testing.T) {
	a := NewGSet()
	a.Add("x")
	b := NewGSet()
	b.Add("y")
	c := NewGSet()
	c.Add("z")

	left := sortedElements(a.Merge(b).Merge(c))
	right := sortedElements(a.Merge(b.Merge(c)))
	if !reflect.DeepEqual(left, right) {
		t.Fatalf("merge not associative: %v vs %v", left, right)
	}
}

func TestGSetMergeIdempotent(t *testing.T) {
	a := NewGSet()
	a.Add("x")
	a.Add("y")

	once := sortedElements(a.Merge(a))
	if !reflect.DeepEqual(once, sortedElements(a)) {
		t.Fatalf("merge not idempotent: %v vs %v", once, sortedElements(a))
	}
}
