package prefetch

import (
	"io"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/pool"
)

// Prefetcher runs prefetchSeq over consumeSeq against a prefetch pool,
// keeping at most capacity reads outstanding at any moment (spec.md
// section 4.6). PullBlock blocks only if the next block in consume order
// is not yet fetched; BlockConsumed returns a drained buffer to the
// pipeline so a later hint can reuse it.
type Prefetcher struct {
	pool        *pool.Prefetch
	consumeSeq  []bid.BID
	prefetchSeq []int
	capacity    int

	cursor      int // next index of consumeSeq to deliver
	nextToHint  int // next index into prefetchSeq to issue
	loaned      [][]byte
}

// New primes the pipeline: it issues up to capacity hints drawn from the
// front of prefetchSeq before returning, so the first PullBlock calls have
// a head start.
func New(pl *pool.Prefetch, a *arena.Arena, blockLen int, consumeSeq []bid.BID, prefetchSeq []int, capacity int) *Prefetcher {
	pr := &Prefetcher{
		pool:        pl,
		consumeSeq:  consumeSeq,
		prefetchSeq: prefetchSeq,
		capacity:    capacity,
	}
	for i := 0; i < capacity; i++ {
		pr.loaned = append(pr.loaned, a.Alloc(blockLen).Bytes())
	}
	pr.fillWindow()
	return pr
}

func (pr *Prefetcher) fillWindow() {
	pr.evictBehindWindow()
	for pr.nextToHint < len(pr.prefetchSeq) && pr.nextToHint-pr.cursor < pr.capacity {
		idx := pr.prefetchSeq[pr.nextToHint]
		pr.pool.Hint(pr.consumeSeq[idx])
		pr.nextToHint++
	}
}

// evictBehindWindow returns completed-but-cold buffers for BIDs outside the
// current consume/prefetch window to the pool's free list, per spec.md
// section 4.4's hint/admission interplay: a hint issued when the pool is
// full is otherwise silently dropped, so recycling cold buffers between
// pulls keeps the prefetch pipeline from stalling on popularity-tracked
// hot blocks that have already been consumed.
func (pr *Prefetcher) evictBehindWindow() {
	end := pr.cursor + pr.capacity
	if end > len(pr.consumeSeq) {
		end = len(pr.consumeSeq)
	}
	keep := make(map[bid.BID]bool, end-pr.cursor)
	for i := pr.cursor; i < end; i++ {
		keep[pr.consumeSeq[i]] = true
	}
	pr.pool.EvictUnpopular(keep)
}

// PullBlock returns the next block's bytes in consume order, blocking only
// if that block's prefetch has not yet completed. It returns io.EOF once
// consumeSeq is exhausted.
func (pr *Prefetcher) PullBlock() ([]byte, error) {
	if pr.cursor >= len(pr.consumeSeq) {
		return nil, io.EOF
	}
	target := pr.consumeSeq[pr.cursor]

	var spare []byte
	if n := len(pr.loaned); n > 0 {
		spare = pr.loaned[n-1]
		pr.loaned = pr.loaned[:n-1]
	}

	buf, req := pr.pool.Read(spare, target)
	if err := req.Wait(); err != nil {
		return nil, err
	}
	pr.cursor++
	pr.fillWindow()
	return buf, nil
}

// BlockConsumed returns buf to this prefetcher's loan pool so it can serve
// a future PullBlock that misses the prefetch pool's cache.
func (pr *Prefetcher) BlockConsumed(buf []byte) {
	pr.loaned = append(pr.loaned, buf)
}

// Done reports whether every block in consumeSeq has been pulled.
func (pr *Prefetcher) Done() bool { return pr.cursor >= len(pr.consumeSeq) }
