package sortcore

// LoserTree is the tournament tree described by spec.md section 4.8: k run
// cursors padded up to the next power of two with sentinel-empty slots,
// built bottom-up in one linear pass, with each internal node holding the
// losing cursor of the match at that node and the root holding the
// overall winner.
//
// The teacher's target language unrolls the leaf-to-root replay walk for
// compile-time-known heights 2..10; Go has no equivalent compile-time
// specialization over an interface-typed cursor slice, so replay below is
// a single runtime loop for every k. Behavior is identical; only the
// unrolling is dropped.
type LoserTree[R any] struct {
	cursors []Cursor[R]
	less    Less[R]
	k2      int   // cursors padded to this power of two
	loser   []int // size k2; loser[1..k2-1] valid, node i has children 2i, 2i+1
	winner  int   // current overall winner's cursor index
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New builds a loser tree over cursors, which must be non-empty.
func New[R any](cursors []Cursor[R], less Less[R]) *LoserTree[R] {
	k2 := nextPow2(len(cursors))
	if k2 < 2 {
		k2 = 2
	}
	t := &LoserTree[R]{
		cursors: cursors,
		less:    less,
		k2:      k2,
		loser:   make([]int, k2),
	}
	t.build()
	return t
}

// isInf reports whether cursor index idx is a padding slot or an exhausted
// cursor, i.e. the spec's inf-sentinel.
func (t *LoserTree[R]) isInf(idx int) bool {
	return idx >= len(t.cursors) || t.cursors[idx].Empty()
}

func (t *LoserTree[R]) value(idx int) R { return t.cursors[idx].Current() }

// compare returns the winner and loser of a match between cursor indices a
// and b, treating an inf-sentinel as losing unconditionally.
func (t *LoserTree[R]) compare(a, b int) (winner, loser int) {
	infA, infB := t.isInf(a), t.isInf(b)
	switch {
	case infA && infB:
		return a, b
	case infA:
		return b, a
	case infB:
		return a, b
	case t.less(t.value(a), t.value(b)):
		return a, b
	default:
		return b, a
	}
}

// build performs the one-pass bottom-up construction: leaves are the
// padded cursor indices, and cur[k2+i] collapses pairwise up to the
// root, recording the loser at each internal node on the way.
func (t *LoserTree[R]) build() {
	cur := make([]int, 2*t.k2)
	for i := 0; i < t.k2; i++ {
		cur[t.k2+i] = i
	}
	for i := t.k2 - 1; i >= 1; i-- {
		w, l := t.compare(cur[2*i], cur[2*i+1])
		cur[i] = w
		t.loser[i] = l
	}
	t.winner = cur[1]
}

// replay re-establishes the invariant after the leaf at index leaf
// changes (its cursor advanced or became exhausted), walking from that
// leaf to the root in O(log k2).
func (t *LoserTree[R]) replay(leaf int) {
	cur := leaf
	node := (t.k2 + leaf) / 2
	for node >= 1 {
		w, l := t.compare(cur, t.loser[node])
		t.loser[node] = l
		cur = w
		node /= 2
	}
	t.winner = cur
}

// Empty reports whether every cursor is exhausted.
func (t *LoserTree[R]) Empty() bool { return t.isInf(t.winner) }

// Next returns the current overall-minimum record and advances its source
// cursor, or ok=false once every cursor is exhausted.
func (t *LoserTree[R]) Next() (rec R, ok bool, err error) {
	if t.Empty() {
		return rec, false, nil
	}
	w := t.winner
	rec = t.value(w)
	if err := t.cursors[w].Advance(); err != nil {
		return rec, true, err
	}
	t.replay(w)
	return rec, true, nil
}

// MultiMerge drains up to n records into a freshly allocated slice
// (spec.md's multi_merge(out[0..n))), stopping early if every cursor
// empties first.
func (t *LoserTree[R]) MultiMerge(n int) ([]R, error) {
	out := make([]R, 0, n)
	for len(out) < n {
		rec, ok, err := t.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}
