package alloc

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble/v2"
)

// SnapshotStore persists allocator free-interval snapshots across test runs
// of the simdisk backend, purely as a debugging aid: spec.md's scratch-disk
// contents are explicitly undefined across restarts, so nothing here is
// read back to reconstruct allocator state at startup. It gives
// cmd/xxlstore-diskinfo and the allocator's own tests a way to diff "free
// bytes before" against "free bytes after" a run without re-deriving it
// from the disk file.
type SnapshotStore struct {
	db *pebble.DB
}

// OpenSnapshotStore opens (creating if needed) a small pebble instance at
// dir to hold allocator snapshots.
func OpenSnapshotStore(dir string) (*SnapshotStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("alloc: open snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error { return s.db.Close() }

// Save encodes the allocator's free list under key (typically the disk
// number and a run label) as a flat sequence of (off, len) varints.
func (s *SnapshotStore) Save(key []byte, a *Allocator) error {
	a.mu.Lock()
	buf := make([]byte, 0, len(a.free)*16)
	for _, iv := range a.free {
		buf = binary.AppendVarint(buf, iv.Off)
		buf = binary.AppendVarint(buf, iv.Len)
	}
	a.mu.Unlock()
	return s.db.Set(key, buf, pebble.Sync)
}

// Load decodes a previously-saved free list. It never feeds the allocator
// directly: callers use it only to compare snapshots across runs.
func (s *SnapshotStore) Load(key []byte) ([]Interval, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		return nil, fmt.Errorf("alloc: load snapshot: %w", err)
	}
	defer closer.Close()

	var out []Interval
	buf := val
	for len(buf) > 0 {
		off, n := binary.Varint(buf)
		buf = buf[n:]
		length, n := binary.Varint(buf)
		buf = buf[n:]
		out = append(out, Interval{Off: off, Len: length})
	}
	return out, nil
}
