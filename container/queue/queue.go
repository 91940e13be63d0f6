// Package queue implements an external FIFO: the enqueue side fills a
// tail page through a write pool, spilling full pages to disk; the
// dequeue side drains a head page fetched through a prefetch pool.
// Grounded in original_source/containers/queue.h, whose two-page
// (front/back) design this mirrors with Go's pool types standing in for
// the C++ type's direct buffer management.
package queue

import (
	"errors"
	"unsafe"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

var ErrEmpty = errors.New("queue: dequeue from empty queue")

// Queue is an external FIFO of records of type R.
type Queue[R any] struct {
	m        *manager.Manager
	wp       *pool.Write
	pp       *pool.Prefetch
	a        *arena.Arena
	strategy manager.Strategy
	blockLen int64
	rpb      int

	tail         []R
	tailAllocIdx int
	bids         []bid.BID

	head    []R
	headPos int

	size int64
}

func New[R any](m *manager.Manager, wp *pool.Write, pp *pool.Prefetch, a *arena.Arena, strategy manager.Strategy, blockLen int64) *Queue[R] {
	var zero R
	recSize := int(unsafe.Sizeof(zero))
	rpb := 1
	if recSize > 0 {
		rpb = int(blockLen) / recSize
		if rpb < 1 {
			rpb = 1
		}
	}
	return &Queue[R]{m: m, wp: wp, pp: pp, a: a, strategy: strategy, blockLen: blockLen, rpb: rpb}
}

func (q *Queue[R]) Size() int64 { return q.size }
func (q *Queue[R]) Empty() bool { return q.size == 0 }

// Enqueue appends v to the tail, spilling a full tail page to disk
// through the write pool.
func (q *Queue[R]) Enqueue(v R) error {
	q.tail = append(q.tail, v)
	q.size++
	if len(q.tail) == q.rpb {
		if err := q.flushTail(); err != nil {
			return err
		}
		q.tail = q.tail[:0]
	}
	return nil
}

func (q *Queue[R]) flushTail() error {
	buf, err := q.wp.Steal()
	if err != nil {
		return err
	}
	copy(xstream.RecordsOf[R](buf), q.tail)

	bids := []bid.BID{{Size: q.blockLen}}
	strat := manager.OffsetAllocator(q.strategy, q.tailAllocIdx)
	if err := q.m.NewBlocks(strat, bids); err != nil {
		return err
	}
	q.tailAllocIdx++

	full := buf
	if _, err := q.wp.Write(&full, bids[0]); err != nil {
		return err
	}
	q.wp.Add(full)
	q.bids = append(q.bids, bids[0])
	return nil
}

// Dequeue removes and returns the oldest enqueued record.
func (q *Queue[R]) Dequeue() (R, error) {
	var zero R
	if q.headPos >= len(q.head) {
		if len(q.bids) == 0 {
			if len(q.tail) == 0 {
				return zero, ErrEmpty
			}
			v := q.tail[0]
			q.tail = q.tail[1:]
			q.size--
			return v, nil
		}
		next := q.bids[0]
		q.bids = q.bids[1:]

		spare := q.a.Alloc(int(q.blockLen)).Bytes()
		buf, req := q.pp.Read(spare, next)
		if err := req.Wait(); err != nil {
			return zero, err
		}
		q.head = append([]R(nil), xstream.RecordsOf[R](buf)...)
		q.headPos = 0
		if err := q.m.DeleteBlock(next); err != nil {
			return zero, err
		}
	}
	v := q.head[q.headPos]
	q.headPos++
	q.size--
	return v, nil
}
