package vector_test

import (
	"testing"

	"github.com/xxlstore/xxlstore/container/vector"
	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
)

func TestVectorGetSetWithEviction(t *testing.T) {
	files := []diskfile.File{diskfile.NewSimDisk(0, 1 << 22)}
	m := manager.New(files)
	defer m.Close()

	a := arena.New(4096)
	strategy := manager.SingleDisk(0)
	wp := pool.NewWrite(m, a, 4096, 2)
	pp := pool.NewPrefetch(m, a, 4096, 2)

	const length = 4000
	v, err := vector.New[int64](m, wp, pp, a, strategy, 4096, length, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.Len() != length {
		t.Fatalf("Len() = %d, want %d", v.Len(), length)
	}

	for i := int64(0); i < length; i++ {
		if err := v.Set(i, i*7); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}
	for i := int64(0); i < length; i++ {
		got, err := v.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if want := i * 7; got != want {
			t.Fatalf("Get(%d) = %d, want %d", i, got, want)
		}
	}

	if _, err := v.Get(-1); err != vector.ErrOutOfRange {
		t.Fatalf("Get(-1) = %v, want ErrOutOfRange", err)
	}
	if _, err := v.Get(length); err != vector.ErrOutOfRange {
		t.Fatalf("Get(length) = %v, want ErrOutOfRange", err)
	}

	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if used := m.UsedBytes(); used != 0 {
		t.Fatalf("UsedBytes after Close = %d, want 0", used)
	}
}
