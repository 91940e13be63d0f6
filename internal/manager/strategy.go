package manager

import (
	"math/rand"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/xxlstore/xxlstore/internal/bid"
)

// Strategy maps a logical block index to a disk id. It must be a pure
// function of i except where the spec explicitly allows randomness: SR and
// RC fix their randomness at construction time and are pure thereafter;
// FR draws from a label-seeded generator on every call, so its result
// depends on how many calls came before rather than on i.
type Strategy func(i int) bid.DiskID

// SeedFromLabel derives a deterministic 64-bit seed from a human-readable
// label (a disk-set name, a run id, ...), used to make FR/SR/RC
// reproducible across a test run without plumbing a raw seed everywhere.
func SeedFromLabel(label string) uint64 { return xxhash.Sum64String(label) }

// SingleDisk always returns d.
func SingleDisk(d bid.DiskID) Strategy {
	return func(int) bid.DiskID { return d }
}

// Striping cycles begin..end in order: begin + i mod span.
func Striping(begin, end bid.DiskID) Strategy {
	span := int64(end - begin)
	if span <= 0 {
		panic("manager: striping requires end > begin")
	}
	return func(i int) bid.DiskID {
		return begin + bid.DiskID(int64(i)%span)
	}
}

// FullyRandomized picks an independent uniform disk per index. label seeds
// the per-index draws via SeedFromLabel, so the same label (a disk-set
// name, a run id, ...) always reproduces the same sequence.
func FullyRandomized(begin, end bid.DiskID, label string) Strategy {
	span := int64(end - begin)
	if span <= 0 {
		panic("manager: FR requires end > begin")
	}
	var mu sync.Mutex
	r := rand.New(rand.NewSource(int64(SeedFromLabel(label))))
	return func(int) bid.DiskID {
		mu.Lock()
		defer mu.Unlock()
		return begin + bid.DiskID(r.Int63n(span))
	}
}

// SimpleRandomized is striping with a single random rotation fixed at
// construction time, seeded from label via SeedFromLabel.
func SimpleRandomized(begin, end bid.DiskID, label string) Strategy {
	span := int64(end - begin)
	if span <= 0 {
		panic("manager: SR requires end > begin")
	}
	rotation := int64(SeedFromLabel(label) % uint64(span))
	return func(i int) bid.DiskID {
		return begin + bid.DiskID((int64(i)+rotation)%span)
	}
}

// RandomCycling fixes a permutation of [begin, end) at construction,
// seeded from label via SeedFromLabel, and cycles through it:
// begin + perm[i mod span].
func RandomCycling(begin, end bid.DiskID, label string) Strategy {
	span := int(end - begin)
	if span <= 0 {
		panic("manager: RC requires end > begin")
	}
	perm := rand.New(rand.NewSource(int64(SeedFromLabel(label)))).Perm(span)
	return func(i int) bid.DiskID {
		return begin + bid.DiskID(perm[i%span])
	}
}

// OffsetAllocator shifts a base strategy's index sequence by k, so a later
// batch of allocations continues the same disk rotation a previous batch
// left off on.
func OffsetAllocator(base Strategy, k int) Strategy {
	return func(i int) bid.DiskID { return base(k + i) }
}
