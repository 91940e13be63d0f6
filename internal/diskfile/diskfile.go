// Package diskfile provides the fixed-capacity random-access byte stores
// ("disks") that back the store. Three backends are supported, selected by
// the config file's io_impl directive: syscall (pread/pwrite against a real
// file), mmap (a memory-mapped file), and simdisk (an in-memory store with
// a modeled access latency, used by tests so they run fast and
// deterministically).
package diskfile

import (
	"errors"
	"fmt"

	"github.com/xxlstore/xxlstore/internal/bid"
)

var (
	ErrOutOfRange   = errors.New("diskfile: offset+length exceeds disk capacity")
	ErrBadAlignment = errors.New("diskfile: offset or length not block-aligned")
)

// File is the synchronous byte-range contract each backend implements. The
// disk queue (internal/diskqueue) wraps a File to provide the asynchronous
// aread/awrite surface described by the spec; File itself never blocks for
// longer than one syscall.
type File interface {
	ReadAt(buf []byte, off int64) error
	WriteAt(buf []byte, off int64) error
	// SetSize truncates or extends the backing store. Only legal at
	// initialization, before any other goroutine may be issuing I/O.
	SetSize(n int64) error
	Capacity() int64
	DiskNumber() bid.DiskID
	Close() error
}

// Backend names the io_impl config directive value.
type Backend string

const (
	Syscall Backend = "syscall"
	Mmap    Backend = "mmap"
	Simdisk Backend = "simdisk"
)

func checkRange(off, length, capacity int64) error {
	if off < 0 || length < 0 || off+length > capacity {
		return fmt.Errorf("%w: off=%d len=%d capacity=%d", ErrOutOfRange, off, length, capacity)
	}
	return nil
}
