// Package xstream implements the buffered input/output streams over a
// range of BIDs: block-granular views that hide the prefetch and write
// pools behind Current/Advance (the spec's `<<`/`>>`/`++` operators) and
// compose into the for_each/find streaming algorithms named but not
// detailed by spec.md section 1 (see original_source/algo/scan.h).
package xstream

import (
	"io"
	"unsafe"

	"github.com/xxlstore/xxlstore/internal/prefetch"
)

// RecordsOf reinterprets buf as a slice of R, for callers outside this
// package (the run merger) that need the same zero-copy view a stream
// uses internally but manage their own block lifecycle.
func RecordsOf[R any](buf []byte) []R { return recordsOf[R](buf) }

func recordsOf[R any](buf []byte) []R {
	var zero R
	sz := int(unsafe.Sizeof(zero))
	if sz == 0 || len(buf) < sz {
		return nil
	}
	return unsafe.Slice((*R)(unsafe.Pointer(&buf[0])), len(buf)/sz)
}

// IStream reads records of type R in block order from a Prefetcher,
// presenting them one at a time.
type IStream[R any] struct {
	pr      *prefetch.Prefetcher
	buf     []byte
	recs    []R
	pos     int
	atEOF   bool
}

// NewIStream constructs a stream and pulls its first block.
func NewIStream[R any](pr *prefetch.Prefetcher) (*IStream[R], error) {
	s := &IStream[R]{pr: pr}
	if err := s.loadBlock(); err != nil && err != io.EOF {
		return nil, err
	}
	return s, nil
}

func (s *IStream[R]) loadBlock() error {
	buf, err := s.pr.PullBlock()
	if err != nil {
		s.atEOF = true
		s.buf, s.recs, s.pos = nil, nil, 0
		return err
	}
	s.buf = buf
	s.recs = recordsOf[R](buf)
	s.pos = 0
	return nil
}

// Empty reports whether the stream has no more records.
func (s *IStream[R]) Empty() bool { return s.atEOF && s.pos >= len(s.recs) }

// Current returns the record the stream is positioned at. Only valid when
// !Empty().
func (s *IStream[R]) Current() R { return s.recs[s.pos] }

// Advance moves to the next record, pulling a new block when the current
// one is exhausted.
func (s *IStream[R]) Advance() error {
	s.pos++
	if s.pos < len(s.recs) {
		return nil
	}
	if s.buf != nil {
		s.pr.BlockConsumed(s.buf)
	}
	if s.atEOF {
		return nil
	}
	err := s.loadBlock()
	if err == io.EOF {
		return nil
	}
	return err
}
