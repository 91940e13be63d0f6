// Package stack implements a grow-shrink external stack: pushes fill the
// current in-memory page, spilling a full page to a freshly allocated
// block on overflow; pops drain the current page, reading the
// previous page back and freeing its block on underflow. Grounded in
// original_source/containers/stack.h's normal_stack (this module's single
// current page corresponds to that implementation's blocks_per_page
// cache, simplified to one page deep rather than several).
package stack

import (
	"errors"
	"unsafe"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

var ErrEmpty = errors.New("stack: pop from empty stack")

// Stack is an external, growable LIFO of records of type R.
type Stack[R any] struct {
	m        *manager.Manager
	a        *arena.Arena
	strategy manager.Strategy
	blockLen int64
	rpb      int

	cur      []R
	bids     []bid.BID
	size     int64
	allocIdx int
}

func New[R any](m *manager.Manager, a *arena.Arena, strategy manager.Strategy, blockLen int64) *Stack[R] {
	var zero R
	recSize := int(unsafe.Sizeof(zero))
	rpb := 1
	if recSize > 0 {
		rpb = int(blockLen) / recSize
		if rpb < 1 {
			rpb = 1
		}
	}
	return &Stack[R]{m: m, a: a, strategy: strategy, blockLen: blockLen, rpb: rpb}
}

func (s *Stack[R]) Size() int64 { return s.size }
func (s *Stack[R]) Empty() bool { return s.size == 0 }

// Push appends v, spilling the current page to disk if it is full.
func (s *Stack[R]) Push(v R) error {
	if len(s.cur) == s.rpb {
		if err := s.flushCur(); err != nil {
			return err
		}
		s.cur = s.cur[:0]
	}
	s.cur = append(s.cur, v)
	s.size++
	return nil
}

func (s *Stack[R]) flushCur() error {
	buf := s.a.Alloc(int(s.blockLen)).Bytes()
	copy(xstream.RecordsOf[R](buf), s.cur)

	bids := []bid.BID{{Size: s.blockLen}}
	strat := manager.OffsetAllocator(s.strategy, s.allocIdx)
	if err := s.m.NewBlocks(strat, bids); err != nil {
		return err
	}
	s.allocIdx++

	req, err := s.m.AWrite(bids[0], buf, nil)
	if err != nil {
		return err
	}
	if err := req.Wait(); err != nil {
		return err
	}
	s.bids = append(s.bids, bids[0])
	return nil
}

// Pop removes and returns the most recently pushed record.
func (s *Stack[R]) Pop() (R, error) {
	var zero R
	if len(s.cur) == 0 {
		if len(s.bids) == 0 {
			return zero, ErrEmpty
		}
		last := s.bids[len(s.bids)-1]
		s.bids = s.bids[:len(s.bids)-1]

		buf := s.a.Alloc(int(s.blockLen)).Bytes()
		req, err := s.m.ARead(last, buf, nil)
		if err != nil {
			return zero, err
		}
		if err := req.Wait(); err != nil {
			return zero, err
		}
		if err := s.m.DeleteBlock(last); err != nil {
			return zero, err
		}
		s.cur = append([]R(nil), xstream.RecordsOf[R](buf)...)
	}
	v := s.cur[len(s.cur)-1]
	s.cur = s.cur[:len(s.cur)-1]
	s.size--
	return v, nil
}
