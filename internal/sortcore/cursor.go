// Package sortcore implements the external sort core: the loser-tree
// k-way merger, the run creator, the run merger, and the sort/ksort
// drivers built on top of them (spec.md sections 4.8-4.11).
package sortcore

// Cursor is the shape the loser-tree merger and the run drivers need over
// a source of records: a position that can be read, advanced, and tested
// for exhaustion. internal/xstream.IStream[R] satisfies this directly.
type Cursor[R any] interface {
	Current() R
	Empty() bool
	Advance() error
}

// Less reports whether a sorts strictly before b, the comparator every
// driver in this package takes (spec.md's `cmp`).
type Less[R any] func(a, b R) bool
