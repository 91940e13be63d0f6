//go:build linux || darwin

package diskfile

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/xxlstore/xxlstore/internal/bid"
)

// MmapFile memory-maps the whole disk file once and serves reads/writes as
// plain byte-slice copies against the mapping, letting the kernel manage
// page cache eviction.
type MmapFile struct {
	mu       sync.RWMutex
	f        *os.File
	data     []byte
	disk     bid.DiskID
	capacity int64
}

func OpenMmapFile(path string, disk bid.DiskID, capacity int64) (*MmapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskfile: open %s: %w", path, err)
	}
	if err := f.Truncate(capacity); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskfile: truncate %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("diskfile: mmap %s: %w", path, err)
	}
	return &MmapFile{f: f, data: data, disk: disk, capacity: capacity}, nil
}

func (d *MmapFile) ReadAt(buf []byte, off int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := checkRange(off, int64(len(buf)), d.capacity); err != nil {
		return err
	}
	copy(buf, d.data[off:off+int64(len(buf))])
	return nil
}

func (d *MmapFile) WriteAt(buf []byte, off int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := checkRange(off, int64(len(buf)), d.capacity); err != nil {
		return err
	}
	copy(d.data[off:off+int64(len(buf))], buf)
	return nil
}

// SetSize is only legal at initialization: it remaps the whole file.
func (d *MmapFile) SetSize(n int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.data != nil {
		if err := unix.Munmap(d.data); err != nil {
			return fmt.Errorf("diskfile: munmap: %w", err)
		}
	}
	if err := d.f.Truncate(n); err != nil {
		return fmt.Errorf("diskfile: truncate: %w", err)
	}
	data, err := unix.Mmap(int(d.f.Fd()), 0, int(n), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("diskfile: mmap: %w", err)
	}
	d.data = data
	d.capacity = n
	return nil
}

func (d *MmapFile) Capacity() int64        { return d.capacity }
func (d *MmapFile) DiskNumber() bid.DiskID { return d.disk }

func (d *MmapFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := unix.Msync(d.data, unix.MS_SYNC); err != nil {
		return err
	}
	if err := unix.Munmap(d.data); err != nil {
		return err
	}
	return d.f.Close()
}
