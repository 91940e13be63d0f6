// Package prefetch implements the async-schedule computer and the block
// prefetcher: together they run a pre-computed prefetch order over a
// consume sequence of BIDs, handing blocks to a consumer as needed while
// keeping every configured disk's queue busy (spec.md sections 4.6, 4.7).
package prefetch

import "github.com/xxlstore/xxlstore/internal/bid"

// ComputeSchedule returns a permutation of indices into consumeSeq giving
// the order in which those BIDs should be prefetched. The model: each
// disk processes its queue sequentially, so the schedule greedily
// round-robins across disks, preserving each disk's own relative order,
// which keeps every disk's queue populated instead of draining one disk
// before starting the next. With zero or one disk represented the
// interleaving has no effect, so the identity permutation is returned
// (spec.md's degenerate fallback).
func ComputeSchedule(consumeSeq []bid.BID) []int {
	buckets := make(map[bid.DiskID][]int)
	var diskOrder []bid.DiskID
	for i, b := range consumeSeq {
		if _, ok := buckets[b.Disk]; !ok {
			diskOrder = append(diskOrder, b.Disk)
		}
		buckets[b.Disk] = append(buckets[b.Disk], i)
	}

	if len(diskOrder) <= 1 {
		identity := make([]int, len(consumeSeq))
		for i := range identity {
			identity[i] = i
		}
		return identity
	}

	schedule := make([]int, 0, len(consumeSeq))
	pos := make(map[bid.DiskID]int, len(diskOrder))
	for {
		progressed := false
		for _, d := range diskOrder {
			p := pos[d]
			if p < len(buckets[d]) {
				schedule = append(schedule, buckets[d][p])
				pos[d] = p + 1
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return schedule
}
