package xstream_test

import (
	"testing"

	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
	"github.com/xxlstore/xxlstore/internal/prefetch"
	"github.com/xxlstore/xxlstore/internal/xstream"
)

const testBlockLen = 4096

func newTestManager(t *testing.T, nDisks int) *manager.Manager {
	t.Helper()
	files := make([]diskfile.File, nDisks)
	for i := range files {
		files[i] = diskfile.NewSimDisk(bid.DiskID(i), 1<<20)
	}
	return manager.New(files)
}

func TestOStreamIStreamRoundTrip(t *testing.T) {
	m := newTestManager(t, 2)
	defer m.Close()

	a := arena.New(4096)
	strategy := manager.Striping(0, 2)
	wp := pool.NewWrite(m, a, testBlockLen, 4)

	os, err := xstream.NewOStream[int64](m, wp, strategy, testBlockLen)
	if err != nil {
		t.Fatalf("NewOStream: %v", err)
	}

	const n = 5000
	for i := int64(0); i < n; i++ {
		if err := os.Put(i); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	written, err := os.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(written) == 0 {
		t.Fatal("expected at least one block written")
	}

	pp := pool.NewPrefetch(m, a, testBlockLen, 4)
	sched := prefetch.ComputeSchedule(written)
	pr := prefetch.New(pp, a, testBlockLen, written, sched, 4)

	is, err := xstream.NewIStream[int64](pr)
	if err != nil {
		t.Fatalf("NewIStream: %v", err)
	}

	got, err := xstream.Collect(is)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) < n {
		t.Fatalf("got %d records, want at least %d (trailing slack from the partly filled last block is fine, a shortfall is not)", len(got), n)
	}
	for i := int64(0); i < n; i++ {
		if got[i] != i {
			t.Fatalf("record %d = %d, want %d", i, got[i], i)
		}
	}

	if err := m.DeleteBlocks(written); err != nil {
		t.Fatalf("DeleteBlocks: %v", err)
	}
	if used := m.UsedBytes(); used != 0 {
		t.Fatalf("UsedBytes after delete = %d, want 0", used)
	}
}

func TestForEachAndFind(t *testing.T) {
	m := newTestManager(t, 1)
	defer m.Close()

	a := arena.New(4096)
	strategy := manager.SingleDisk(0)
	wp := pool.NewWrite(m, a, testBlockLen, 2)

	os, err := xstream.NewOStream[int32](m, wp, strategy, testBlockLen)
	if err != nil {
		t.Fatalf("NewOStream: %v", err)
	}
	for i := int32(0); i < 100; i++ {
		if err := os.Put(i); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	written, err := os.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	pp := pool.NewPrefetch(m, a, testBlockLen, 2)
	sched := prefetch.ComputeSchedule(written)
	pr := prefetch.New(pp, a, testBlockLen, written, sched, 2)
	is, err := xstream.NewIStream[int32](pr)
	if err != nil {
		t.Fatalf("NewIStream: %v", err)
	}

	var sum int64
	if err := xstream.ForEach(is, func(v int32) { sum += int64(v) }); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if want := int64(99 * 100 / 2); sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}

	pp2 := pool.NewPrefetch(m, a, testBlockLen, 2)
	pr2 := prefetch.New(pp2, a, testBlockLen, written, sched, 2)
	is2, err := xstream.NewIStream[int32](pr2)
	if err != nil {
		t.Fatalf("NewIStream: %v", err)
	}
	found, ok, err := xstream.Find(is2, func(v int32) bool { return v == 42 })
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !ok || found != 42 {
		t.Fatalf("Find(42) = (%d, %v), want (42, true)", found, ok)
	}
}
