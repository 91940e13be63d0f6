// Package alloc implements the per-disk free-space allocator: a sorted,
// coalesced list of free byte intervals serving first-fit allocation and
// merge-on-free, as described by spec.md section 4.2.
package alloc

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/xxlstore/xxlstore/internal/bid"
)

var (
	ErrNoSpace    = errors.New("alloc: no free interval large enough")
	ErrInvalidBid = errors.New("alloc: bid is not owned by this allocator or was already freed")
)

// Interval is a disjoint free byte range [Off, Off+Len).
type Interval struct {
	Off int64
	Len int64
}

func (iv Interval) End() int64 { return iv.Off + iv.Len }

// Allocator owns one disk's free-space map. Zero value is not usable; use
// New. All methods are safe for concurrent use.
type Allocator struct {
	mu       sync.Mutex
	disk     bid.DiskID
	capacity int64
	free     []Interval // sorted strictly increasing by Off, non-adjacent
}

func New(disk bid.DiskID, capacity int64) *Allocator {
	return &Allocator{
		disk:     disk,
		capacity: capacity,
		free:     []Interval{{Off: 0, Len: capacity}},
	}
}

// Capacity returns the disk's total byte capacity.
func (a *Allocator) Capacity() int64 { return a.capacity }

// FreeBytes returns the sum of free-interval lengths, for the allocator
// conservation invariant: FreeBytes() + allocated bytes == Capacity().
func (a *Allocator) FreeBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var sum int64
	for _, iv := range a.free {
		sum += iv.Len
	}
	return sum
}

// UsedBytes is Capacity() - FreeBytes(), the quantity S3/S5/S6 require to
// reach zero once all blocks are freed.
func (a *Allocator) UsedBytes() int64 { return a.capacity - a.FreeBytes() }

// NewBlocks assigns offsets to bids in place: it sums the requested sizes,
// finds one free interval large enough to hold all of them by first-fit,
// and hands out consecutive sub-ranges of that interval. Size-0 BIDs are
// legal and consume no space.
func (a *Allocator) NewBlocks(bids []bid.BID) error {
	var total int64
	for _, b := range bids {
		total += b.Size
	}
	if total == 0 {
		for i := range bids {
			bids[i].Disk = a.disk
			bids[i].Offset = 0
		}
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := -1
	for i, iv := range a.free {
		if iv.Len >= total {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: disk %d wants %d bytes, largest free interval is %d",
			ErrNoSpace, a.disk, total, a.largestLocked())
	}

	start := a.free[idx].Off
	off := start
	for i := range bids {
		bids[i].Disk = a.disk
		bids[i].Offset = off
		off += bids[i].Size
	}

	a.free[idx].Off += total
	a.free[idx].Len -= total
	if a.free[idx].Len == 0 {
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	}
	return nil
}

func (a *Allocator) largestLocked() int64 {
	var max int64
	for _, iv := range a.free {
		if iv.Len > max {
			max = iv.Len
		}
	}
	return max
}

// DeleteBlock returns one BID's bytes to the free map, coalescing with the
// predecessor and/or successor interval. BIDs with Size 0 or Disk ==
// bid.NoDisk are no-ops (they never consumed allocator space).
func (a *Allocator) DeleteBlock(b bid.BID) error {
	if b.Size == 0 || !b.Managed() {
		return nil
	}
	if b.Disk != a.disk {
		return fmt.Errorf("%w: bid on disk %d presented to allocator for disk %d", ErrInvalidBid, b.Disk, a.disk)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.overlapsFreeLocked(b) {
		return fmt.Errorf("%w: %s overlaps an already-free range (double free)", ErrInvalidBid, b)
	}

	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Off >= b.Offset })
	nv := Interval{Off: b.Offset, Len: b.Size}

	mergedWithPrev := false
	if i > 0 && a.free[i-1].End() == nv.Off {
		a.free[i-1].Len += nv.Len
		i--
		mergedWithPrev = true
	}
	if !mergedWithPrev {
		a.free = append(a.free, Interval{})
		copy(a.free[i+1:], a.free[i:])
		a.free[i] = nv
	}
	if i+1 < len(a.free) && a.free[i].End() == a.free[i+1].Off {
		a.free[i].Len += a.free[i+1].Len
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	return nil
}

// DeleteBlocks frees the BIDs in slice order, stopping at and returning the
// first error; BIDs after the failing one are not freed.
func (a *Allocator) DeleteBlocks(bids []bid.BID) error {
	for _, b := range bids {
		if err := a.DeleteBlock(b); err != nil {
			return err
		}
	}
	return nil
}

func (a *Allocator) overlapsFreeLocked(b bid.BID) bool {
	for _, iv := range a.free {
		if b.Offset < iv.End() && iv.Off < b.End() {
			return true
		}
	}
	return false
}
