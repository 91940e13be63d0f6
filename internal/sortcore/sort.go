package sortcore

import (
	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
)

// writePoolReserve is the number of block buffers the run merger assumes
// the write pool keeps aside for its own output double-buffering, counted
// against the block budget when choosing the merge fan-in k (spec.md
// section 4.10's "k = M/block_size - reserved_for_write_pool").
const writePoolReserve = 2

// Sort implements `sort(first, last, cmp, M)` (spec.md section 6): forms
// sorted runs under memory budget M, then merges them down to one run.
func Sort[R any](src Cursor[R], less Less[R], m *manager.Manager, wp *pool.Write, pp *pool.Prefetch, a *arena.Arena, strategy manager.Strategy, blockLen int64, budgetBytes int64, padValue R) (*SortedRuns[R], error) {
	runs, err := CreateRuns[R](src, less, m, wp, strategy, blockLen, budgetBytes, padValue)
	if err != nil {
		return nil, err
	}
	return MergeRuns[R](runs, less, m, wp, pp, a, strategy, blockLen, budgetBytes, writePoolReserve)
}
