package sortcore

import (
	"fmt"
	"slices"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

// KeyExtractor pulls the u64 sort key out of a record (spec.md section
// 4.11's key_extractor).
type KeyExtractor[R any, K ~uint64] func(R) K

// insertionThreshold is the partition size below which radix
// classification stops and falls back to a comparison sort (spec.md
// section 4.11: "falls back to insertion/std::sort on runs ≤ 16").
const insertionThreshold = 16

// maxClassifyBits caps the bucket fan-out of a single classification
// level, keeping bucket count and the scratch array bounded regardless of
// how large #records/L2 is.
const maxClassifyBits = 11

func sortByKey[R any, K ~uint64](buf []R, keyOf KeyExtractor[R, K]) {
	slices.SortFunc(buf, func(a, b R) int {
		ka, kb := keyOf(a), keyOf(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})
}

func classifyBits(n int) int {
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	if bits < 1 {
		bits = 1
	}
	if bits > maxClassifyBits {
		bits = maxClassifyBits
	}
	return bits
}

// radixSort classifies buf by the `bits` bits of the key starting at bit
// hi (counting from 0 at the least-significant bit), then recurses once
// more into each bucket with the next lower span of bits before falling
// back to sortByKey — the two-level classification of spec.md section
// 4.11 (log_k1 top bits, then log_k2 of the remainder).
func radixSort[R any, K ~uint64](buf []R, keyOf KeyExtractor[R, K], hi int, level int) {
	if len(buf) <= insertionThreshold || hi < 0 || level >= 2 {
		sortByKey(buf, keyOf)
		return
	}
	bits := classifyBits(len(buf))
	if bits > hi+1 {
		bits = hi + 1
	}
	shift := uint(hi - bits + 1)
	nBuckets := 1 << bits
	mask := K(nBuckets - 1)

	bucketOf := func(r R) int { return int((keyOf(r) >> shift) & mask) }

	counts := make([]int, nBuckets+1)
	for _, r := range buf {
		counts[bucketOf(r)+1]++
	}
	for i := 1; i <= nBuckets; i++ {
		counts[i] += counts[i-1]
	}

	out := make([]R, len(buf))
	cursor := append([]int(nil), counts[:nBuckets]...)
	for _, r := range buf {
		b := bucketOf(r)
		out[cursor[b]] = r
		cursor[b]++
	}
	copy(buf, out)

	nextHi := int(shift) - 1
	for i := 0; i < nBuckets; i++ {
		lo, end := counts[i], counts[i+1]
		if end-lo <= 1 {
			continue
		}
		radixSort(buf[lo:end], keyOf, nextHi, level+1)
	}
}

// KsortCreateRuns is CreateRuns with the internal sort step replaced by
// MSD-radix classification over keyOf, per spec.md section 4.11.
func KsortCreateRuns[R any, K ~uint64](src Cursor[R], keyOf KeyExtractor[R, K], m *manager.Manager, wp *pool.Write, strategy manager.Strategy, blockLen int64, budgetBytes int64, padValue R) (*SortedRuns[R], error) {
	rpb := recordsPerBlock[R](blockLen)
	if rpb < 1 {
		return nil, fmt.Errorf("sortcore: block of %d bytes too small for one record", blockLen)
	}
	m2 := int(budgetBytes / (2 * blockLen))
	if m2 < 1 {
		m2 = 1
	}
	bufCap := m2 * rpb

	var sr SortedRuns[R]
	for !src.Empty() {
		buf := make([]R, 0, bufCap)
		for len(buf) < bufCap && !src.Empty() {
			buf = append(buf, src.Current())
			if err := src.Advance(); err != nil {
				return nil, err
			}
		}
		sr.RecordCount += int64(len(buf))

		radixSort[R, K](buf, keyOf, 63, 0)

		if rem := len(buf) % rpb; rem != 0 {
			for i := 0; i < rpb-rem; i++ {
				buf = append(buf, padValue)
			}
		}

		os, err := xstream.NewOStream[R](m, wp, strategy, blockLen)
		if err != nil {
			return nil, err
		}
		for _, r := range buf {
			if err := os.Put(r); err != nil {
				return nil, err
			}
		}
		bids, err := os.Close()
		if err != nil {
			return nil, err
		}

		run := Run[R]{Blocks: make([]bid.TriggerEntry[R], len(bids))}
		for i, b := range bids {
			run.Blocks[i] = bid.TriggerEntry[R]{BID: b, FirstKey: buf[i*rpb]}
		}
		sr.Runs = append(sr.Runs, run)
	}
	return &sr, nil
}

// Ksort implements `ksort(first, last, key_extractor, M)` (spec.md
// section 6): same run-merge structure as Sort, but runs are formed by
// radix classification on keyOf instead of a general comparator.
func Ksort[R any, K ~uint64](src Cursor[R], keyOf KeyExtractor[R, K], m *manager.Manager, wp *pool.Write, pp *pool.Prefetch, a *arena.Arena, strategy manager.Strategy, blockLen int64, budgetBytes int64, padValue R) (*SortedRuns[R], error) {
	runs, err := KsortCreateRuns[R, K](src, keyOf, m, wp, strategy, blockLen, budgetBytes, padValue)
	if err != nil {
		return nil, err
	}
	less := func(a, b R) bool { return keyOf(a) < keyOf(b) }
	return MergeRuns[R](runs, less, m, wp, pp, a, strategy, blockLen, budgetBytes, writePoolReserve)
}
