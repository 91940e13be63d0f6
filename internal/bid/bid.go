// Package bid defines the block identifier used throughout the store:
// a (disk, offset, size) triple that names a byte range on one configured
// disk file.
package bid

import "fmt"

// DiskID identifies one configured disk file by its index in the manager's
// disk list. NoDisk marks a BID whose storage is null: it bypasses the
// allocator and is never freed.
type DiskID int32

const NoDisk DiskID = -1

// BID names a byte range on a disk. A BID with Disk == NoDisk is
// "unmanaged" and carries no allocator obligation.
type BID struct {
	Disk   DiskID
	Offset int64
	Size   int64
}

func (b BID) Managed() bool { return b.Disk != NoDisk }

func (b BID) End() int64 { return b.Offset + b.Size }

func (b BID) String() string {
	if !b.Managed() {
		return "bid(unmanaged)"
	}
	return fmt.Sprintf("bid(disk=%d,off=%d,size=%d)", b.Disk, b.Offset, b.Size)
}

// Overlaps reports whether two BIDs on the same disk share any byte.
func (b BID) Overlaps(o BID) bool {
	if b.Disk != o.Disk {
		return false
	}
	return b.Offset < o.End() && o.Offset < b.End()
}

// TriggerEntry is the merge-time representative of one block of a run:
// the block's BID plus the first key of the block, used as the pivot
// when deciding which run currently has the smallest head element.
type TriggerEntry[K any] struct {
	BID      BID
	FirstKey K
}
