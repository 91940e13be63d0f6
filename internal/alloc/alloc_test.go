package alloc_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/xxlstore/xxlstore/internal/alloc"
	"github.com/xxlstore/xxlstore/internal/bid"
)

func TestNewBlocksAssignsConsecutiveOffsets(t *testing.T) {
	a := alloc.New(0, 1024)
	bids := []bid.BID{{Size: 64}, {Size: 128}, {Size: 32}}
	if err := a.NewBlocks(bids); err != nil {
		t.Fatalf("NewBlocks: %v", err)
	}
	want := []int64{0, 64, 192}
	for i, b := range bids {
		if b.Disk != 0 {
			t.Fatalf("bids[%d].Disk = %d, want 0", i, b.Disk)
		}
		if b.Offset != want[i] {
			t.Fatalf("bids[%d].Offset = %d, want %d", i, b.Offset, want[i])
		}
	}
	if got := a.UsedBytes(); got != 64+128+32 {
		t.Fatalf("UsedBytes = %d, want %d", got, 64+128+32)
	}
}

func TestSizeZeroBidsConsumeNoSpace(t *testing.T) {
	a := alloc.New(0, 128)
	bids := []bid.BID{{Size: 0}}
	if err := a.NewBlocks(bids); err != nil {
		t.Fatalf("NewBlocks: %v", err)
	}
	if a.UsedBytes() != 0 {
		t.Fatalf("UsedBytes = %d, want 0", a.UsedBytes())
	}
	if err := a.DeleteBlock(bids[0]); err != nil {
		t.Fatalf("DeleteBlock on size-0 bid: %v", err)
	}
}

func TestNewBlocksNoSpace(t *testing.T) {
	a := alloc.New(0, 100)
	if err := a.NewBlocks([]bid.BID{{Size: 200}}); !errors.Is(err, alloc.ErrNoSpace) {
		t.Fatalf("NewBlocks err = %v, want ErrNoSpace", err)
	}
}

func TestDeleteBlockCoalescesNeighbours(t *testing.T) {
	a := alloc.New(0, 300)
	bids := []bid.BID{{Size: 100}, {Size: 100}, {Size: 100}}
	if err := a.NewBlocks(bids); err != nil {
		t.Fatalf("NewBlocks: %v", err)
	}
	if a.UsedBytes() != 300 {
		t.Fatalf("UsedBytes = %d, want 300", a.UsedBytes())
	}

	// Free the middle block first: no coalescing possible yet.
	if err := a.DeleteBlock(bids[1]); err != nil {
		t.Fatalf("DeleteBlock(middle): %v", err)
	}
	// Free the first block: coalesces with the now-free middle interval.
	if err := a.DeleteBlock(bids[0]); err != nil {
		t.Fatalf("DeleteBlock(first): %v", err)
	}
	// Free the last block: everything coalesces back into one free run.
	if err := a.DeleteBlock(bids[2]); err != nil {
		t.Fatalf("DeleteBlock(last): %v", err)
	}
	if got := a.UsedBytes(); got != 0 {
		t.Fatalf("UsedBytes after freeing all = %d, want 0", got)
	}
	if got := a.FreeBytes(); got != a.Capacity() {
		t.Fatalf("FreeBytes = %d, want Capacity %d (fully coalesced)", got, a.Capacity())
	}

	// A fresh allocation of the full capacity must now succeed in one
	// interval, proving the frees coalesced into a single contiguous run.
	full := []bid.BID{{Size: 300}}
	if err := a.NewBlocks(full); err != nil {
		t.Fatalf("NewBlocks(full capacity) after coalesce: %v", err)
	}
}

func TestDeleteBlockRejectsDoubleFree(t *testing.T) {
	a := alloc.New(0, 128)
	bids := []bid.BID{{Size: 64}}
	if err := a.NewBlocks(bids); err != nil {
		t.Fatalf("NewBlocks: %v", err)
	}
	if err := a.DeleteBlock(bids[0]); err != nil {
		t.Fatalf("DeleteBlock: %v", err)
	}
	if err := a.DeleteBlock(bids[0]); !errors.Is(err, alloc.ErrInvalidBid) {
		t.Fatalf("double free err = %v, want ErrInvalidBid", err)
	}
}

func TestDeleteBlockRejectsWrongDisk(t *testing.T) {
	a := alloc.New(0, 128)
	wrong := bid.BID{Disk: 1, Offset: 0, Size: 32}
	if err := a.DeleteBlock(wrong); !errors.Is(err, alloc.ErrInvalidBid) {
		t.Fatalf("cross-disk free err = %v, want ErrInvalidBid", err)
	}
}

// TestAllocatorConservation is spec.md section 8 invariant 1: at every
// quiescent moment FreeBytes + allocated bytes == Capacity. It drives a
// random sequence of allocations and frees of varying sizes and checks the
// invariant after every step.
func TestAllocatorConservation(t *testing.T) {
	const capacity = 1 << 16
	a := alloc.New(0, capacity)
	rnd := rand.New(rand.NewSource(42))

	var live []bid.BID
	var used int64
	for i := 0; i < 2000; i++ {
		if len(live) > 0 && (rnd.Intn(2) == 0 || used > capacity/2) {
			idx := rnd.Intn(len(live))
			b := live[idx]
			if err := a.DeleteBlock(b); err != nil {
				t.Fatalf("DeleteBlock: %v", err)
			}
			used -= b.Size
			live = append(live[:idx], live[idx+1:]...)
		} else {
			size := int64(1 + rnd.Intn(256))
			bids := []bid.BID{{Size: size}}
			if err := a.NewBlocks(bids); err != nil {
				if errors.Is(err, alloc.ErrNoSpace) {
					continue
				}
				t.Fatalf("NewBlocks: %v", err)
			}
			used += size
			live = append(live, bids[0])
		}
		if got := a.FreeBytes() + used; got != capacity {
			t.Fatalf("step %d: FreeBytes()+used = %d, want capacity %d", i, got, capacity)
		}
	}

	for _, b := range live {
		if err := a.DeleteBlock(b); err != nil {
			t.Fatalf("final DeleteBlock: %v", err)
		}
	}
	if got := a.FreeBytes(); got != capacity {
		t.Fatalf("FreeBytes after draining all = %d, want capacity %d", got, capacity)
	}
}
