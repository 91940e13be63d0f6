package pool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/ioreq"
	"github.com/xxlstore/xxlstore/internal/manager"
)

type writeEntry struct {
	buf []byte
	req *ioreq.Request
	bid bid.BID
}

// Write absorbs bursts of writes behind a bounded set of buffers: free
// buffers are handed out for the caller to fill, and once full they are
// handed back via Write, which parks the (buffer, request, BID) tuple in
// busy (ordered oldest-first) and returns a fresh buffer to fill next.
type Write struct {
	mu       sync.Mutex
	m        *manager.Manager
	arena    *arena.Arena
	blockLen int
	capacity int
	free     [][]byte
	busy     []*writeEntry
	log      *slog.Logger
}

func NewWrite(m *manager.Manager, a *arena.Arena, blockLen, capacity int) *Write {
	w := &Write{
		m:        m,
		arena:    a,
		blockLen: blockLen,
		capacity: capacity,
		log:      slog.Default().With("component", "writepool"),
	}
	for i := 0; i < capacity; i++ {
		w.free = append(w.free, a.Alloc(blockLen).Bytes())
	}
	return w
}

// Write takes ownership of *bufInOut, issues an async write of it to bid,
// parks the tuple in the busy list, and replaces *bufInOut with a buffer
// ready to be filled next (from the free list, or by stealing the
// least-recently-issued outstanding write if the free list is empty).
//
// Write-after-write ordering for the same BID is guaranteed implicitly:
// the per-disk queue (internal/diskqueue) serves writes in submission
// order, so a second write queued for a BID that already has one
// outstanding is automatically ordered after it.
func (w *Write) Write(bufInOut *[]byte, b bid.BID) (*ioreq.Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := *bufInOut
	req, err := w.m.AWrite(b, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("pool: write pool issue for %s: %w", b, err)
	}
	w.busy = append(w.busy, &writeEntry{buf: buf, req: req, bid: b})

	next, err := w.takeLocked()
	if err != nil {
		return req, err
	}
	*bufInOut = next
	return req, nil
}

// Steal returns a free buffer, waiting for the oldest outstanding write to
// complete if none is free. This is the library's PoolExhausted recovery
// path: resolved locally by blocking rather than propagated as an error.
func (w *Write) Steal() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.takeLocked()
}

func (w *Write) takeLocked() ([]byte, error) {
	if len(w.free) > 0 {
		n := len(w.free)
		buf := w.free[n-1]
		w.free = w.free[:n-1]
		return buf, nil
	}
	if len(w.busy) == 0 {
		return nil, fmt.Errorf("pool: write pool exhausted with nothing outstanding to steal from")
	}
	oldest := w.busy[0]
	w.busy = w.busy[1:]
	if err := oldest.req.Wait(); err != nil {
		w.log.Error("stolenWriteFailed", "bid", oldest.bid, "err", err)
	}
	return oldest.buf, nil
}

// Add returns an externally-owned buffer of the pool's block size to the
// free list (spec.md's WritePool::add, used when a container releases a
// page it no longer needs back to the pool that originally lent it out).
func (w *Write) Add(buf []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.free = append(w.free, buf)
}

// GetRequest returns the outstanding request and buffer for bid, if any.
// Used by Prefetch.HintWithWritePool to piggy-back a read on a pending
// write rather than racing it.
func (w *Write) GetRequest(b bid.BID) (*ioreq.Request, []byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.busy {
		if e.bid == b {
			return e.req, e.buf, true
		}
	}
	return nil, nil, false
}

// Resize grows the pool by allocating new free buffers, or shrinks it by
// trimming the free list only (never forcing completion of an outstanding
// write).
func (w *Write) Resize(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := len(w.free) + len(w.busy)
	if n > cur {
		for i := 0; i < n-cur; i++ {
			w.free = append(w.free, w.arena.Alloc(w.blockLen).Bytes())
		}
	} else if n < cur {
		shrinkBy := cur - n
		for shrinkBy > 0 && len(w.free) > 0 {
			w.free = w.free[:len(w.free)-1]
			shrinkBy--
		}
	}
	w.capacity = n
}

// Balance reports (free, busy) counts; their sum must equal capacity at
// every quiescent moment (spec.md section 8, invariant 4).
func (w *Write) Balance() (free, busy int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.free), len(w.busy)
}

// Drain waits for every outstanding write to complete, e.g. at the end of
// a run-creation pass.
func (w *Write) Drain() error {
	w.mu.Lock()
	pending := make([]*ioreq.Request, len(w.busy))
	for i, e := range w.busy {
		pending[i] = e.req
	}
	entries := w.busy
	w.busy = nil
	w.mu.Unlock()

	err := ioreq.WaitAll(pending)

	w.mu.Lock()
	for _, e := range entries {
		w.free = append(w.free, e.buf)
	}
	w.mu.Unlock()
	return err
}
