// Package block implements the fixed-size typed block: B bytes holding
// `size = floor((B-tail)/sizeof(R))` records of type R, an optional tail
// of BID references, and an optional per-block info value, as described
// by spec.md section 3. Blocks borrow their backing bytes from an
// internal/arena.Handle and reinterpret them as typed slices with
// unsafe.Slice rather than marshaling, since R is required to be a plain
// byte-copyable aggregate (spec.md's non-goal excludes records containing
// heap-owning references).
package block

import (
	"fmt"
	"unsafe"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/ioreq"
	"github.com/xxlstore/xxlstore/internal/manager"
)

// Block[R, I] is a fixed-size slab holding `size` records of type R, up to
// nrefs BID references, and one I value, laid out contiguously so the
// whole block is one aligned byte range suitable for a single read/write.
type Block[R any, I any] struct {
	h     arena.Handle
	size  int
	nrefs int
}

// recordSize and bidSize are computed once per instantiation; Go
// monomorphizes generic functions per type argument so this is no more
// than a handful of unsafe.Sizeof calls per (R, I) pair used.
func recordSize[R any]() int {
	var zero R
	return int(unsafe.Sizeof(zero))
}

func infoSize[I any]() int {
	var zero I
	return int(unsafe.Sizeof(zero))
}

var bidSize = int(unsafe.Sizeof(bid.BID{}))

// New allocates a block of exactly bytes total size from a, holding as
// many R records as fit after reserving room for nrefs BID references and
// one I info value.
func New[R any, I any](a *arena.Arena, bytes int, nrefs int) (*Block[R, I], error) {
	tail := nrefs*bidSize + infoSize[I]()
	recSize := recordSize[R]()
	if recSize <= 0 {
		return nil, fmt.Errorf("block: record type has zero size")
	}
	size := (bytes - tail) / recSize
	if size <= 0 {
		return nil, fmt.Errorf("block: %d bytes too small for tail of %d plus one record of %d", bytes, tail, recSize)
	}
	return &Block[R, I]{h: a.Alloc(bytes), size: size, nrefs: nrefs}, nil
}

// Size is the number of record slots in the block.
func (b *Block[R, I]) Size() int { return b.size }

// Records is a zero-copy typed view over the block's record slots.
func (b *Block[R, I]) Records() []R {
	buf := b.h.Bytes()
	if b.size == 0 {
		return nil
	}
	return unsafe.Slice((*R)(unsafe.Pointer(&buf[0])), b.size)
}

// Refs is a zero-copy typed view over the block's trailing BID references.
func (b *Block[R, I]) Refs() []bid.BID {
	if b.nrefs == 0 {
		return nil
	}
	buf := b.h.Bytes()
	off := b.size * recordSize[R]()
	return unsafe.Slice((*bid.BID)(unsafe.Pointer(&buf[off])), b.nrefs)
}

// Info is a pointer to the block's single per-block info value.
func (b *Block[R, I]) Info() *I {
	buf := b.h.Bytes()
	off := b.size*recordSize[R]() + b.nrefs*bidSize
	return (*I)(unsafe.Pointer(&buf[off]))
}

// Bytes is the block's raw backing storage, exactly the size passed to New.
func (b *Block[R, I]) Bytes() []byte { return b.h.Bytes() }

// Read issues an asynchronous read of the block's bytes from loc.
func (b *Block[R, I]) Read(m *manager.Manager, loc bid.BID) (*ioreq.Request, error) {
	return m.ARead(loc, b.h.Bytes(), nil)
}

// Write issues an asynchronous write of the block's bytes to loc, invoking
// onComplete (which may be nil) when the write lands.
func (b *Block[R, I]) Write(m *manager.Manager, loc bid.BID, onComplete ioreq.CompletionFunc) (*ioreq.Request, error) {
	return m.AWrite(loc, b.h.Bytes(), onComplete)
}
