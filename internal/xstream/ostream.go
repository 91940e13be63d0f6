package xstream

import (
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
)

// OStream accumulates records of type R into blocks and flushes each full
// block through a write pool, allocating a fresh BID from the manager as it
// goes. Close flushes any partial final block and returns every BID written,
// in write order, so a caller (a run creator, a container) can record them.
type OStream[R any] struct {
	m        *manager.Manager
	wp       *pool.Write
	strategy manager.Strategy
	blockLen int64

	buf      []byte
	recs     []R
	pos      int
	allocIdx int
	emitted  []bid.BID
}

// NewOStream constructs a stream over record type R, writing through wp and
// allocating new block BIDs via strategy.
func NewOStream[R any](m *manager.Manager, wp *pool.Write, strategy manager.Strategy, blockLen int64) (*OStream[R], error) {
	buf, err := wp.Steal()
	if err != nil {
		return nil, err
	}
	return &OStream[R]{
		m:        m,
		wp:       wp,
		strategy: strategy,
		blockLen: blockLen,
		buf:      buf,
		recs:     recordsOf[R](buf),
	}, nil
}

// Put appends rec, flushing the current block first if it is full.
func (o *OStream[R]) Put(rec R) error {
	if o.pos >= len(o.recs) {
		if err := o.flush(); err != nil {
			return err
		}
	}
	o.recs[o.pos] = rec
	o.pos++
	return nil
}

func (o *OStream[R]) flush() error {
	if o.pos == 0 {
		return nil
	}
	bids := []bid.BID{{Size: o.blockLen}}
	strat := manager.OffsetAllocator(o.strategy, o.allocIdx)
	if err := o.m.NewBlocks(strat, bids); err != nil {
		return err
	}
	o.allocIdx++

	next := o.buf
	if _, err := o.wp.Write(&next, bids[0]); err != nil {
		return err
	}
	o.emitted = append(o.emitted, bids[0])

	o.buf = next
	o.recs = recordsOf[R](next)
	o.pos = 0
	return nil
}

// Close flushes any partial final block, waits for every write to complete,
// and returns the BIDs written in order.
func (o *OStream[R]) Close() ([]bid.BID, error) {
	if err := o.flush(); err != nil {
		return nil, err
	}
	o.wp.Add(o.buf)
	o.buf, o.recs = nil, nil
	if err := o.wp.Drain(); err != nil {
		return o.emitted, err
	}
	return o.emitted, nil
}
