// Package pqueue implements a minimal external priority queue layered on
// the run-merger primitives in internal/sortcore: an in-memory insertion
// buffer spills to a new sorted run on disk once it grows past a
// threshold, and DeleteMin merges the buffer with every open run's
// current head through a loser tree. Grounded in
// original_source/containers/priority_queue.h's multi-way external
// merge, simplified to rebuild the merge selection on every DeleteMin
// rather than maintaining one long-lived tournament tree (documented as
// an accepted simplification).
package pqueue

import (
	"errors"
	"sort"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
	"github.com/xxlstore/xxlstore/internal/prefetch"
	"github.com/xxlstore/xxlstore/internal/sortcore"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

var ErrEmpty = errors.New("pqueue: delete-min from empty queue")

// bufCursor adapts the sorted in-memory insertion buffer into a
// sortcore.Cursor[R]: it always reads the front and Advance pops it, so
// winning this cursor in a merge physically removes the element.
type bufCursor[R any] struct{ buf *[]R }

func (c bufCursor[R]) Current() R   { return (*c.buf)[0] }
func (c bufCursor[R]) Empty() bool  { return len(*c.buf) == 0 }
func (c bufCursor[R]) Advance() error {
	*c.buf = (*c.buf)[1:]
	return nil
}

type runState[R any] struct {
	is   *xstream.IStream[R]
	bids []bid.BID
}

// PQueue is an external priority queue of records of type R, ordered
// ascending by less.
type PQueue[R any] struct {
	less     sortcore.Less[R]
	m        *manager.Manager
	wp       *pool.Write
	pp       *pool.Prefetch
	a        *arena.Arena
	strategy manager.Strategy
	blockLen int64
	insertCap int

	buf      []R
	runs     []*runState[R]
	size     int64
	allocIdx int
}

func New[R any](less sortcore.Less[R], m *manager.Manager, wp *pool.Write, pp *pool.Prefetch, a *arena.Arena, strategy manager.Strategy, blockLen int64, insertCap int) *PQueue[R] {
	if insertCap < 1 {
		insertCap = 1
	}
	return &PQueue[R]{less: less, m: m, wp: wp, pp: pp, a: a, strategy: strategy, blockLen: blockLen, insertCap: insertCap}
}

func (q *PQueue[R]) Size() int64 { return q.size }
func (q *PQueue[R]) Empty() bool { return q.size == 0 }

// Insert adds v, keeping the in-memory buffer sorted, and spills it to a
// new external run once it reaches insertCap.
func (q *PQueue[R]) Insert(v R) error {
	idx := sort.Search(len(q.buf), func(i int) bool { return !q.less(q.buf[i], v) })
	q.buf = append(q.buf, v)
	copy(q.buf[idx+1:], q.buf[idx:])
	q.buf[idx] = v
	q.size++

	if len(q.buf) >= q.insertCap {
		return q.spill()
	}
	return nil
}

func (q *PQueue[R]) spill() error {
	os, err := xstream.NewOStream[R](q.m, q.wp, manager.OffsetAllocator(q.strategy, q.allocIdx), q.blockLen)
	if err != nil {
		return err
	}
	for _, v := range q.buf {
		if err := os.Put(v); err != nil {
			return err
		}
	}
	bids, err := os.Close()
	if err != nil {
		return err
	}
	q.allocIdx += len(bids)
	q.buf = q.buf[:0]

	sched := prefetch.ComputeSchedule(bids)
	capHint := len(bids)
	if capHint < 2 {
		capHint = 2
	}
	pr := prefetch.New(q.pp, q.a, int(q.blockLen), bids, sched, capHint)
	is, err := xstream.NewIStream[R](pr)
	if err != nil {
		return err
	}
	q.runs = append(q.runs, &runState[R]{is: is, bids: bids})
	return nil
}

func (q *PQueue[R]) pruneExhausted() {
	alive := q.runs[:0]
	for _, rs := range q.runs {
		if rs.is.Empty() {
			q.m.DeleteBlocks(rs.bids)
			continue
		}
		alive = append(alive, rs)
	}
	q.runs = alive
}

// DeleteMin removes and returns the smallest element.
func (q *PQueue[R]) DeleteMin() (R, error) {
	var zero R
	q.pruneExhausted()
	if len(q.buf) == 0 && len(q.runs) == 0 {
		return zero, ErrEmpty
	}

	cursors := make([]sortcore.Cursor[R], 0, len(q.runs)+1)
	if len(q.buf) > 0 {
		cursors = append(cursors, bufCursor[R]{buf: &q.buf})
	}
	for _, rs := range q.runs {
		cursors = append(cursors, rs.is)
	}

	lt := sortcore.New(cursors, q.less)
	v, ok, err := lt.Next()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrEmpty
	}
	q.size--
	return v, nil
}
