//go:build linux || darwin

package diskfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/xxlstore/xxlstore/internal/bid"
)

// SyscallFile issues pread/pwrite directly against an open file descriptor,
// bypassing the os.File buffering layer. Concurrent reads at distinct
// offsets progress independently because pread/pwrite take an explicit
// offset rather than relying on the file's seek position.
type SyscallFile struct {
	f        *os.File
	fd       int
	disk     bid.DiskID
	capacity int64
}

// OpenSyscallFile opens or creates path as disk number disk with the given
// capacity in bytes. If direct is true, O_DIRECT is requested (Linux only);
// callers must then issue aligned reads/writes of block-sized, block-aligned
// ranges (spec.md's "B must be a multiple of a device alignment").
func OpenSyscallFile(path string, disk bid.DiskID, capacity int64, direct bool) (*SyscallFile, error) {
	flags := os.O_RDWR | os.O_CREATE
	if direct {
		flags |= unix.O_DIRECT
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskfile: open %s: %w", path, err)
	}
	sf := &SyscallFile{f: f, fd: int(f.Fd()), disk: disk, capacity: capacity}
	if err := sf.SetSize(capacity); err != nil {
		f.Close()
		return nil, err
	}
	return sf, nil
}

func (d *SyscallFile) ReadAt(buf []byte, off int64) error {
	if err := checkRange(off, int64(len(buf)), d.capacity); err != nil {
		return err
	}
	for n := 0; n < len(buf); {
		nn, err := unix.Pread(d.fd, buf[n:], off+int64(n))
		if err != nil {
			return fmt.Errorf("diskfile: pread disk %d off %d: %w", d.disk, off, err)
		}
		if nn == 0 {
			break
		}
		n += nn
	}
	return nil
}

func (d *SyscallFile) WriteAt(buf []byte, off int64) error {
	if err := checkRange(off, int64(len(buf)), d.capacity); err != nil {
		return err
	}
	for n := 0; n < len(buf); {
		nn, err := unix.Pwrite(d.fd, buf[n:], off+int64(n))
		if err != nil {
			return fmt.Errorf("diskfile: pwrite disk %d off %d: %w", d.disk, off, err)
		}
		n += nn
	}
	return nil
}

func (d *SyscallFile) SetSize(n int64) error {
	if err := unix.Ftruncate(d.fd, n); err != nil {
		return fmt.Errorf("diskfile: ftruncate disk %d: %w", d.disk, err)
	}
	d.capacity = n
	return nil
}

func (d *SyscallFile) Capacity() int64      { return d.capacity }
func (d *SyscallFile) DiskNumber() bid.DiskID { return d.disk }
func (d *SyscallFile) Close() error         { return d.f.Close() }
