// Command xxlstore-diskinfo opens the disks named by STXXLCFG (or the
// single-disk fallback) and reports each one's capacity and allocator
// usage, optionally snapshotting the free-interval list to a pebble
// database for comparison against a previous run.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/xxlstore/xxlstore/internal/alloc"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/xconfig"
)

func main() {
	snapshotDir := flag.String("snapshot-dir", "", "pebble directory to save a free-interval snapshot into (skipped if empty)")
	snapshotLabel := flag.String("snapshot-label", "diskinfo", "key prefix to save snapshots under")
	flag.Parse()

	if err := run(*snapshotDir, *snapshotLabel); err != nil {
		slog.Error("diskinfo failed", "err", err)
		os.Exit(1)
	}
}

func run(snapshotDir, snapshotLabel string) error {
	cfg, err := xconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Disks) == 0 {
		return fmt.Errorf("no disks configured")
	}

	files, err := xconfig.Open(cfg)
	if err != nil {
		return fmt.Errorf("open disks: %w", err)
	}
	m := manager.New(files)
	defer m.Close()

	var store *alloc.SnapshotStore
	if snapshotDir != "" {
		store, err = alloc.OpenSnapshotStore(snapshotDir)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()
	}

	for i, spec := range cfg.Disks {
		id := bid.DiskID(i)
		a, err := m.Allocator(id)
		if err != nil {
			return fmt.Errorf("disk %d: %w", i, err)
		}
		fmt.Printf("disk %d: %s backend=%s capacity=%d used=%d free=%d\n",
			i, spec.Path, spec.Backend, a.Capacity(), a.UsedBytes(), a.FreeBytes())

		if store != nil {
			key := fmt.Appendf(nil, "%s/disk%d", snapshotLabel, i)
			if err := store.Save(key, a); err != nil {
				return fmt.Errorf("disk %d: save snapshot: %w", i, err)
			}
		}
	}
	return nil
}
