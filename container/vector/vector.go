// Package vector implements a fixed-size external vector: a pre-allocated
// run of blocks indexed by position, with a bounded LRU page cache so
// repeated access to the same region doesn't round-trip to disk every
// time. Grounded in original_source/containers/vector.h's pager.h LRU
// page-replacement policy, simplified from its multi-page-per-block
// design to one page per block.
package vector

import (
	"errors"
	"unsafe"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

var ErrOutOfRange = errors.New("vector: index out of range")

type page[R any] struct {
	recs  []R
	dirty bool
}

// Vector is a fixed-length external vector of records of type R, backed
// by length/recordsPerBlock blocks allocated up front.
type Vector[R any] struct {
	m        *manager.Manager
	wp       *pool.Write
	pp       *pool.Prefetch
	a        *arena.Arena
	blockLen int64
	rpb      int

	bids   []bid.BID
	length int64

	cacheCap int
	cache    map[int]*page[R]
	lru      []int // most-recently-used at the back
}

// New allocates ceil(length/recordsPerBlock) blocks for a vector of
// length records, caching up to cacheCap pages in memory at once.
func New[R any](m *manager.Manager, wp *pool.Write, pp *pool.Prefetch, a *arena.Arena, strategy manager.Strategy, blockLen int64, length int64, cacheCap int) (*Vector[R], error) {
	var zero R
	recSize := int(unsafe.Sizeof(zero))
	rpb := 1
	if recSize > 0 {
		rpb = int(blockLen) / recSize
		if rpb < 1 {
			rpb = 1
		}
	}
	nblocks := int((length + int64(rpb) - 1) / int64(rpb))
	if nblocks < 1 {
		nblocks = 1
	}
	bids := make([]bid.BID, nblocks)
	for i := range bids {
		bids[i] = bid.BID{Size: blockLen}
	}
	if err := m.NewBlocks(strategy, bids); err != nil {
		return nil, err
	}
	if cacheCap < 1 {
		cacheCap = 1
	}
	return &Vector[R]{
		m: m, wp: wp, pp: pp, a: a, blockLen: blockLen, rpb: rpb,
		bids: bids, length: length, cacheCap: cacheCap,
		cache: make(map[int]*page[R], cacheCap),
	}, nil
}

func (v *Vector[R]) Len() int64 { return v.length }

func (v *Vector[R]) Get(i int64) (R, error) {
	var zero R
	if i < 0 || i >= v.length {
		return zero, ErrOutOfRange
	}
	blockIdx, off := int(i/int64(v.rpb)), int(i%int64(v.rpb))
	p, err := v.load(blockIdx)
	if err != nil {
		return zero, err
	}
	return p.recs[off], nil
}

func (v *Vector[R]) Set(i int64, val R) error {
	if i < 0 || i >= v.length {
		return ErrOutOfRange
	}
	blockIdx, off := int(i/int64(v.rpb)), int(i%int64(v.rpb))
	p, err := v.load(blockIdx)
	if err != nil {
		return err
	}
	p.recs[off] = val
	p.dirty = true
	return nil
}

func (v *Vector[R]) load(blockIdx int) (*page[R], error) {
	if p, ok := v.cache[blockIdx]; ok {
		v.touch(blockIdx)
		return p, nil
	}
	if len(v.cache) >= v.cacheCap {
		if err := v.evictOldest(); err != nil {
			return nil, err
		}
	}

	spare := v.a.Alloc(int(v.blockLen)).Bytes()
	buf, req := v.pp.Read(spare, v.bids[blockIdx])
	if err := req.Wait(); err != nil {
		return nil, err
	}
	recs := append([]R(nil), xstream.RecordsOf[R](buf)...)
	p := &page[R]{recs: recs}
	v.cache[blockIdx] = p
	v.lru = append(v.lru, blockIdx)
	return p, nil
}

func (v *Vector[R]) touch(blockIdx int) {
	for i, b := range v.lru {
		if b == blockIdx {
			v.lru = append(v.lru[:i], v.lru[i+1:]...)
			break
		}
	}
	v.lru = append(v.lru, blockIdx)
}

func (v *Vector[R]) evictOldest() error {
	if len(v.lru) == 0 {
		return nil
	}
	oldest := v.lru[0]
	v.lru = v.lru[1:]
	p := v.cache[oldest]
	delete(v.cache, oldest)
	if p.dirty {
		return v.writeBack(oldest, p)
	}
	return nil
}

func (v *Vector[R]) writeBack(blockIdx int, p *page[R]) error {
	buf, err := v.wp.Steal()
	if err != nil {
		return err
	}
	copy(xstream.RecordsOf[R](buf), p.recs)
	full := buf
	if _, err := v.wp.Write(&full, v.bids[blockIdx]); err != nil {
		return err
	}
	v.wp.Add(full)
	return nil
}

// Flush writes every dirty cached page back to disk and waits for those
// writes to complete.
func (v *Vector[R]) Flush() error {
	for blockIdx, p := range v.cache {
		if !p.dirty {
			continue
		}
		if err := v.writeBack(blockIdx, p); err != nil {
			return err
		}
		p.dirty = false
	}
	return v.wp.Drain()
}

// Close flushes dirty pages and frees every block the vector owns.
func (v *Vector[R]) Close() error {
	if err := v.Flush(); err != nil {
		return err
	}
	return v.m.DeleteBlocks(v.bids)
}
