package sortcore

import "github.com/xxlstore/xxlstore/internal/bid"

// Run is one sorted run: a sequence of blocks, each block internally
// non-decreasing, and the whole sequence non-decreasing across block
// boundaries. The trigger entry's FirstKey is the block's first record,
// used by the merger to decide interleaving order without reading the
// block (spec.md section 4.9's "record first_key(block) in each trigger
// entry").
type Run[R any] struct {
	Blocks []bid.TriggerEntry[R]
}

func (r Run[R]) NumBlocks() int { return len(r.Blocks) }

func (r Run[R]) bids() []bid.BID {
	out := make([]bid.BID, len(r.Blocks))
	for i, te := range r.Blocks {
		out[i] = te.BID
	}
	return out
}

// SortedRuns is the output of the run creator and the input/output of the
// run merger (spec.md's "Sorted-runs object").
type SortedRuns[R any] struct {
	Runs        []Run[R]
	RecordCount int64
}
