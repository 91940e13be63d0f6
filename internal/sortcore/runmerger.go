package sortcore

import (
	"io"
	"math"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
	"github.com/xxlstore/xxlstore/internal/prefetch"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

// runCursor adapts a run's blocks into a Cursor[R], freeing each block
// back to the block manager the moment the cursor moves past it (spec.md
// section 4.10: "blocks of input runs are released... as soon as their
// last record has been emitted, at block-level granularity").
type runCursor[R any] struct {
	pr    *prefetch.Prefetcher
	m     *manager.Manager
	bids  []bid.BID
	recs  []R
	pos   int
	bIdx  int
	atEOF bool
}

func newRunCursor[R any](m *manager.Manager, pr *prefetch.Prefetcher, bids []bid.BID) (*runCursor[R], error) {
	c := &runCursor[R]{pr: pr, m: m, bids: bids}
	if err := c.loadBlock(); err != nil && err != io.EOF {
		return nil, err
	}
	return c, nil
}

func (c *runCursor[R]) loadBlock() error {
	buf, err := c.pr.PullBlock()
	if err != nil {
		c.atEOF = true
		c.recs, c.pos = nil, 0
		return err
	}
	c.recs = xstream.RecordsOf[R](buf)
	c.pos = 0
	c.bIdx++
	return nil
}

func (c *runCursor[R]) Current() R  { return c.recs[c.pos] }
func (c *runCursor[R]) Empty() bool { return c.atEOF && c.pos >= len(c.recs) }

func (c *runCursor[R]) Advance() error {
	c.pos++
	if c.pos < len(c.recs) {
		return nil
	}
	if c.bIdx-1 >= 0 && c.bIdx-1 < len(c.bids) {
		c.m.DeleteBlock(c.bids[c.bIdx-1])
	}
	if c.atEOF {
		return nil
	}
	err := c.loadBlock()
	if err == io.EOF {
		return nil
	}
	return err
}

// mergeFactor picks f = ceil(n^(1/ceil(log_k(n)))), spec.md section 4.10's
// formula for equalizing pass cost across a multi-pass merge.
func mergeFactor(nRuns, k int) int {
	if nRuns <= k {
		return nRuns
	}
	if k < 2 {
		k = 2
	}
	levels := math.Ceil(math.Log(float64(nRuns)) / math.Log(float64(k)))
	if levels < 1 {
		levels = 1
	}
	f := math.Ceil(math.Pow(float64(nRuns), 1/levels))
	if f < 2 {
		f = 2
	}
	return int(f)
}

// mergeGroup merges a set of runs small enough to fit one loser tree (at
// most k of them) into a single output run.
func mergeGroup[R any](runs []Run[R], less Less[R], m *manager.Manager, wp *pool.Write, pp *pool.Prefetch, a *arena.Arena, strategy manager.Strategy, blockLen int64) (Run[R], error) {
	cursors := make([]Cursor[R], len(runs))
	for i, run := range runs {
		bids := run.bids()
		capacity := len(bids)
		if capacity < 2 {
			capacity = 2
		}
		sched := prefetch.ComputeSchedule(bids)
		pr := prefetch.New(pp, a, int(blockLen), bids, sched, capacity)
		rc, err := newRunCursor[R](m, pr, bids)
		if err != nil {
			return Run[R]{}, err
		}
		cursors[i] = rc
	}

	lt := New(cursors, less)

	os, err := xstream.NewOStream[R](m, wp, strategy, blockLen)
	if err != nil {
		return Run[R]{}, err
	}

	rpb := recordsPerBlock[R](blockLen)
	var firstKeys []R
	var count int
	for {
		rec, ok, err := lt.Next()
		if err != nil {
			return Run[R]{}, err
		}
		if !ok {
			break
		}
		if rpb > 0 && count%rpb == 0 {
			firstKeys = append(firstKeys, rec)
		}
		if err := os.Put(rec); err != nil {
			return Run[R]{}, err
		}
		count++
	}

	bids, err := os.Close()
	if err != nil {
		return Run[R]{}, err
	}

	out := Run[R]{Blocks: make([]bid.TriggerEntry[R], len(bids))}
	for i, b := range bids {
		var fk R
		if i < len(firstKeys) {
			fk = firstKeys[i]
		}
		out.Blocks[i] = bid.TriggerEntry[R]{BID: b, FirstKey: fk}
	}
	return out, nil
}

// MergeRuns implements the run merger (spec.md section 4.10): while the
// run count exceeds k = budgetBytes/blockLen - reservedForWritePool, it
// repeatedly groups runs by the chosen merge factor and merges each group,
// until a single pass over at most k runs produces the final sorted run.
func MergeRuns[R any](sr *SortedRuns[R], less Less[R], m *manager.Manager, wp *pool.Write, pp *pool.Prefetch, a *arena.Arena, strategy manager.Strategy, blockLen int64, budgetBytes int64, reservedForWritePool int) (*SortedRuns[R], error) {
	if len(sr.Runs) <= 1 {
		return sr, nil
	}
	k := int(budgetBytes/blockLen) - reservedForWritePool
	if k < 2 {
		k = 2
	}

	runs := sr.Runs
	for len(runs) > k {
		f := mergeFactor(len(runs), k)
		var next []Run[R]
		for i := 0; i < len(runs); i += f {
			end := i + f
			if end > len(runs) {
				end = len(runs)
			}
			merged, err := mergeGroup[R](runs[i:end], less, m, wp, pp, a, strategy, blockLen)
			if err != nil {
				return nil, err
			}
			next = append(next, merged)
		}
		runs = next
	}

	if len(runs) == 1 {
		return &SortedRuns[R]{Runs: runs, RecordCount: sr.RecordCount}, nil
	}
	merged, err := mergeGroup[R](runs, less, m, wp, pp, a, strategy, blockLen)
	if err != nil {
		return nil, err
	}
	return &SortedRuns[R]{Runs: []Run[R]{merged}, RecordCount: sr.RecordCount}, nil
}
