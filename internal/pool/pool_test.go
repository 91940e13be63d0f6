package pool_test

import (
	"testing"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
)

const poolTestBlockLen = 4096

func newTestManager(t *testing.T, nDisks int) *manager.Manager {
	t.Helper()
	files := make([]diskfile.File, nDisks)
	for i := range files {
		files[i] = diskfile.NewSimDisk(bid.DiskID(i), 1<<20)
	}
	return manager.New(files)
}

// TestWritePoolBalance is spec.md section 8 invariant 4: free+busy ==
// capacity at every quiescent moment, including after Drain returns every
// buffer to free.
func TestWritePoolBalance(t *testing.T) {
	m := newTestManager(t, 1)
	defer m.Close()
	a := arena.New(4096)
	const capacity = 4
	wp := pool.NewWrite(m, a, poolTestBlockLen, capacity)

	if free, busy := wp.Balance(); free+busy != capacity {
		t.Fatalf("initial balance %d+%d != capacity %d", free, busy, capacity)
	}

	strategy := manager.SingleDisk(0)
	for i := 0; i < capacity*3; i++ {
		bids := []bid.BID{{Size: poolTestBlockLen}}
		if err := m.NewBlocks(strategy, bids); err != nil {
			t.Fatalf("NewBlocks: %v", err)
		}
		buf, err := wp.Steal()
		if err != nil {
			t.Fatalf("Steal: %v", err)
		}
		if _, err := wp.Write(&buf, bids[0]); err != nil {
			t.Fatalf("Write: %v", err)
		}
		// Write handed back a buffer to fill next; return it so the pool
		// is quiescent before checking the balance.
		wp.Add(buf)
		if free, busy := wp.Balance(); free+busy != capacity {
			t.Fatalf("step %d: balance %d+%d != capacity %d", i, free, busy, capacity)
		}
	}

	if err := wp.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if free, busy := wp.Balance(); free != capacity || busy != 0 {
		t.Fatalf("post-drain balance = (%d,%d), want (%d,0)", free, busy, capacity)
	}
}

// TestPrefetchPoolBalance is spec.md section 8 invariant 3: free+busy ==
// capacity at every quiescent moment, and a hint with no free buffer is
// silently dropped rather than erroring.
func TestPrefetchPoolBalance(t *testing.T) {
	m := newTestManager(t, 1)
	defer m.Close()
	a := arena.New(4096)
	const capacity = 3
	pp := pool.NewPrefetch(m, a, poolTestBlockLen, capacity)

	strategy := manager.SingleDisk(0)
	bids := make([]bid.BID, capacity+2)
	for i := range bids {
		bids[i] = bid.BID{Size: poolTestBlockLen}
	}
	if err := m.NewBlocks(strategy, bids); err != nil {
		t.Fatalf("NewBlocks: %v", err)
	}

	for _, b := range bids {
		pp.Hint(b)
		if free, busy := pp.Balance(); free+busy != capacity {
			t.Fatalf("after hinting %s: balance %d+%d != capacity %d", b, free, busy, capacity)
		}
	}
	// The pool has only `capacity` buffers; hints beyond that must have been
	// silently dropped, so busy must not exceed capacity.
	if _, busy := pp.Balance(); busy > capacity {
		t.Fatalf("busy = %d, exceeds capacity %d", busy, capacity)
	}

	for _, b := range bids {
		buf := a.Alloc(poolTestBlockLen).Bytes()
		got, req := pp.Read(buf, b)
		if req != nil {
			if err := req.Wait(); err != nil {
				t.Fatalf("Read(%s) request: %v", b, err)
			}
		}
		if got == nil {
			t.Fatalf("Read(%s) returned nil buffer", b)
		}
	}
	if free, busy := pp.Balance(); free+busy != capacity {
		t.Fatalf("final balance %d+%d != capacity %d", free, busy, capacity)
	}

	if err := m.DeleteBlocks(bids); err != nil {
		t.Fatalf("DeleteBlocks: %v", err)
	}
}
