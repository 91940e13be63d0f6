package sortcore

import (
	"fmt"
	"slices"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

func recordsPerBlock[R any](blockLen int64) int {
	var zero R
	sz := int64(unsafe.Sizeof(zero))
	if sz <= 0 {
		return 0
	}
	return int(blockLen / sz)
}

// CreateRuns implements the run creator (spec.md section 4.9): it fills a
// buffer of up to m2 = budgetBytes/(2*blockLen) blocks worth of records
// from src, sorts it in place, pads the tail with padValue if the last
// block is partial, and writes it out as one run. The previous run's
// write-out is overlapped (via errgroup) with filling and sorting the
// next buffer, matching "while sorting the new buffer, the previous one
// is being written; wait for the previous batch of writes before the
// next issue."
func CreateRuns[R any](src Cursor[R], cmp Less[R], m *manager.Manager, wp *pool.Write, strategy manager.Strategy, blockLen int64, budgetBytes int64, padValue R) (*SortedRuns[R], error) {
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

	fillAndSort := func() ([]R, error) {
		buf := make([]R, 0, bufCap)
		for len(buf) < bufCap && !src.Empty() {
			buf = append(buf, src.Current())
			if err := src.Advance(); err != nil {
				return nil, err
			}
		}
		if len(buf) == 0 {
			return nil, nil
		}
		sr.RecordCount += int64(len(buf))
		slices.SortFunc(buf, func(a, b R) int {
			switch {
			case cmp(a, b):
				return -1
			case cmp(b, a):
				return 1
			default:
				return 0
			}
		})
		if rem := len(buf) % rpb; rem != 0 {
			for i := 0; i < rpb-rem; i++ {
				buf = append(buf, padValue)
			}
		}
		return buf, nil
	}

	finalize := func(os *xstream.OStream[R], buf []R) (Run[R], error) {
		bids, err := os.Close()
		if err != nil {
			return Run[R]{}, err
		}
		run := Run[R]{Blocks: make([]bid.TriggerEntry[R], len(bids))}
		for i, b := range bids {
			run.Blocks[i] = bid.TriggerEntry[R]{BID: b, FirstKey: buf[i*rpb]}
		}
		return run, nil
	}

	buf, err := fillAndSort()
	if err != nil {
		return nil, err
	}

	var pendingOS *xstream.OStream[R]
	var pendingBuf []R

	for buf != nil {
		os, err := xstream.NewOStream[R](m, wp, strategy, blockLen)
		if err != nil {
			return nil, err
		}
		for _, r := range buf {
			if err := os.Put(r); err != nil {
				return nil, err
			}
		}

		var g errgroup.Group
		var nextBuf []R
		if pendingOS != nil {
			prevOS, prevBuf := pendingOS, pendingBuf
			g.Go(func() error {
				run, err := finalize(prevOS, prevBuf)
				if err != nil {
					return err
				}
				sr.Runs = append(sr.Runs, run)
				return nil
			})
		}
		g.Go(func() error {
			next, err := fillAndSort()
			nextBuf = next
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		pendingOS, pendingBuf = os, buf
		buf = nextBuf
	}

	if pendingOS != nil {
		run, err := finalize(pendingOS, pendingBuf)
		if err != nil {
			return nil, err
		}
		sr.Runs = append(sr.Runs, run)
	}

	return &sr, nil
}
