package sortcore

import (
	"testing"
)

// sliceCursor is a minimal in-memory Cursor[R] for exercising the loser
// tree without any disk machinery.
type sliceCursor struct {
	vals []int
	pos  int
}

func (c *sliceCursor) Current() int  { return c.vals[c.pos] }
func (c *sliceCursor) Empty() bool   { return c.pos >= len(c.vals) }
func (c *sliceCursor) Advance() error { c.pos++; return nil }

func less(a, b int) bool { return a < b }

func TestLoserTreeMergesSortedCursors(t *testing.T) {
	cursors := []Cursor[int]{
		&sliceCursor{vals: []int{1, 4, 7, 10}},
		&sliceCursor{vals: []int{2, 3, 9}},
		&sliceCursor{vals: []int{0, 5, 6, 8, 11}},
	}
	lt := New(cursors, less)
	out, err := lt.MultiMerge(100)
	if err != nil {
		t.Fatalf("MultiMerge: %v", err)
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	if len(out) != len(want) {
		t.Fatalf("got %d records, want %d: %v", len(out), len(want), out)
	}
	for i, v := range want {
		if out[i] != v {
			t.Fatalf("out[%d] = %d, want %d (full: %v)", i, out[i], v, out)
		}
	}
	if !lt.Empty() {
		t.Fatal("expected tree empty after draining every cursor")
	}
}

func TestLoserTreeSingleCursor(t *testing.T) {
	cursors := []Cursor[int]{&sliceCursor{vals: []int{5, 5, 5}}}
	lt := New(cursors, less)
	out, err := lt.MultiMerge(10)
	if err != nil {
		t.Fatalf("MultiMerge: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d records, want 3", len(out))
	}
}

func TestLoserTreeEmptyCursors(t *testing.T) {
	cursors := []Cursor[int]{&sliceCursor{}, &sliceCursor{}}
	lt := New(cursors, less)
	if !lt.Empty() {
		t.Fatal("expected tree of empty cursors to report Empty")
	}
	out, err := lt.MultiMerge(5)
	if err != nil {
		t.Fatalf("MultiMerge: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d records, want 0", len(out))
	}
}

func TestLoserTreeNonPowerOfTwoFanIn(t *testing.T) {
	// 5 cursors forces padding up to k2=8, exercising the inf-sentinel
	// slots beyond len(cursors).
	var cursors []Cursor[int]
	for i := 0; i < 5; i++ {
		cursors = append(cursors, &sliceCursor{vals: []int{i, i + 10}})
	}
	lt := New(cursors, less)
	out, err := lt.MultiMerge(100)
	if err != nil {
		t.Fatalf("MultiMerge: %v", err)
	}
	if len(out) != 10 {
		t.Fatalf("got %d records, want 10", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i-1] > out[i] {
			t.Fatalf("output not sorted at index %d: %v", i, out)
		}
	}
}
