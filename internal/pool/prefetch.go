// Package pool implements the two bounded buffer caches that mediate
// between users and the block manager: the prefetch pool (speculative
// reads ahead of a consumer) and the write pool (absorbing bursts of
// writes), per spec.md section 4.4 and 4.5.
package pool

import (
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/ioreq"
	"github.com/xxlstore/xxlstore/internal/manager"
)

type prefetchEntry struct {
	buf []byte
	req *ioreq.Request
}

// Prefetch keeps up to capacity blocks either already read or being read.
// free holds buffers not currently attached to any BID; busy maps a BID to
// the buffer (and in-flight request, if any) fetching or holding its
// content.
type Prefetch struct {
	mu       sync.Mutex
	m        *manager.Manager
	arena    *arena.Arena
	blockLen int
	capacity int
	free     [][]byte
	busy     map[bid.BID]*prefetchEntry

	// popularity tracks access frequency the way the teacher's spinner.go
	// tracks block popularity with tinylfu, so EvictUnpopular (called by
	// the block prefetcher between pulls via fillWindow) can return
	// completed-but-not-yet-consumed buffers for cold BIDs to the free
	// list ahead of need. It never overrides the base hint/read contract:
	// a hint with no free buffer is still silently dropped.
	popularity popularityTracker
	log        *slog.Logger
}

// popularityTracker wraps a tinylfu cache behind closures so the struct
// above need not spell out tinylfu's generic instantiation type.
type popularityTracker struct {
	add func(bid.BID)
	hot func(bid.BID) bool
}

func newPopularityTracker(capacity int) popularityTracker {
	if capacity <= 0 {
		capacity = 1
	}
	cache := tinylfu.New[bid.BID, struct{}](capacity, capacity*10, bidHash)
	return popularityTracker{
		add: func(b bid.BID) { cache.Add(b, struct{}{}) },
		hot: func(b bid.BID) bool { _, ok := cache.Get(b); return ok },
	}
}

func NewPrefetch(m *manager.Manager, a *arena.Arena, blockLen, capacity int) *Prefetch {
	p := &Prefetch{
		m:          m,
		arena:      a,
		blockLen:   blockLen,
		capacity:   capacity,
		busy:       make(map[bid.BID]*prefetchEntry, capacity),
		popularity: newPopularityTracker(capacity),
		log:        slog.Default().With("component", "prefetchpool"),
	}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, a.Alloc(blockLen).Bytes())
	}
	return p
}

func bidHash(b bid.BID) uint64 {
	var buf [24]byte
	buf[0] = byte(b.Disk)
	buf[1] = byte(b.Disk >> 8)
	buf[2] = byte(b.Disk >> 16)
	buf[3] = byte(b.Disk >> 24)
	putInt64(buf[4:12], b.Offset)
	putInt64(buf[12:20], b.Size)
	return xxhash.Sum64(buf[:])
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Hint starts a speculative read of bid if it is not already cached or in
// flight and a free buffer is available; otherwise the hint is silently
// dropped (spec.md section 4.4: "else do nothing, the hint is lost").
func (p *Prefetch) Hint(b bid.BID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hintLocked(b)
}

func (p *Prefetch) hintLocked(b bid.BID) {
	if _, ok := p.busy[b]; ok {
		return
	}
	p.popularity.add(b)
	if len(p.free) == 0 {
		return
	}
	buf := p.popFreeLocked()
	req, err := p.m.ARead(b, buf, nil)
	if err != nil {
		p.log.Error("hintFailed", "bid", b, "err", err)
		p.free = append(p.free, buf)
		return
	}
	p.busy[b] = &prefetchEntry{buf: buf, req: req}
}

// HintWithWritePool behaves like Hint, but first checks whether bid is
// still an unfinalized write in wp; if so it piggy-backs on that write's
// buffer and request instead of racing a fresh read against it (the WAR
// hazard called out in spec.md section 5).
func (p *Prefetch) HintWithWritePool(b bid.BID, wp *Write) {
	if req, buf, ok := wp.GetRequest(b); ok {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, already := p.busy[b]; already {
			return
		}
		p.busy[b] = &prefetchEntry{buf: buf, req: req}
		return
	}
	p.Hint(b)
}

// Read either returns the pooled buffer+request for bid (removing it from
// the busy map and releasing bufIO to the free list), or starts a fresh
// read using the caller-provided bufIO.
func (p *Prefetch) Read(bufIO []byte, b bid.BID) ([]byte, *ioreq.Request) {
	p.mu.Lock()
	if e, ok := p.busy[b]; ok {
		delete(p.busy, b)
		p.free = append(p.free, bufIO)
		p.mu.Unlock()
		return e.buf, e.req
	}
	p.mu.Unlock()

	req, err := p.m.ARead(b, bufIO, nil)
	if err != nil {
		p.log.Error("readFailed", "bid", b, "err", err)
		return bufIO, ioreq.Failed(b.Disk, err)
	}
	return bufIO, req
}

// Invalidate discards bid's entry after waiting for its request, for use
// on write-after-read / write-after-write hazards.
func (p *Prefetch) Invalidate(b bid.BID) {
	p.mu.Lock()
	e, ok := p.busy[b]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.busy, b)
	p.mu.Unlock()

	e.req.Wait()

	p.mu.Lock()
	p.free = append(p.free, e.buf)
	p.mu.Unlock()
}

// Resize grows the pool by allocating new buffers, or shrinks it by
// freeing buffers from the free list only; it never forces completion of
// outstanding reads, so capacity may be transiently overcommitted while
// busy entries drain.
func (p *Prefetch) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := len(p.free) + len(p.busy)
	if n > cur {
		for i := 0; i < n-cur; i++ {
			p.free = append(p.free, p.arena.Alloc(p.blockLen).Bytes())
		}
	} else if n < cur {
		shrinkBy := cur - n
		for shrinkBy > 0 && len(p.free) > 0 {
			p.free = p.free[:len(p.free)-1]
			shrinkBy--
		}
	}
	p.capacity = n
}

// EvictUnpopular returns completed busy entries that tinylfu judges cold to
// the free list. The block prefetcher calls this between pulls (see
// internal/prefetch.Prefetcher.fillWindow); it never touches entries with a
// still in-flight request.
func (p *Prefetch) EvictUnpopular(keep map[bid.BID]bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for b, e := range p.busy {
		if keep[b] || !e.req.Poll() {
			continue
		}
		if p.popularity.hot(b) {
			continue
		}
		delete(p.busy, b)
		p.free = append(p.free, e.buf)
	}
}

func (p *Prefetch) popFreeLocked() []byte {
	n := len(p.free)
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	return buf
}

// Balance reports (free, busy) counts; their sum must equal capacity at
// every quiescent moment (spec.md section 8, invariant 3).
func (p *Prefetch) Balance() (free, busy int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free), len(p.busy)
}
