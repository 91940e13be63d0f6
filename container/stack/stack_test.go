package stack_test

import (
	"testing"

	"github.com/xxlstore/xxlstore/container/stack"
	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/manager"
)

func TestStackLIFORoundTrip(t *testing.T) {
	files := []diskfile.File{diskfile.NewSimDisk(0, 1 << 20)}
	m := manager.New(files)
	defer m.Close()

	a := arena.New(4096)
	strategy := manager.SingleDisk(0)
	s := stack.New[int64](m, a, strategy, 4096)

	const n = 5000
	for i := int64(0); i < n; i++ {
		if err := s.Push(i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	if s.Size() != n {
		t.Fatalf("Size() = %d, want %d", s.Size(), n)
	}

	for i := n - 1; i >= 0; i-- {
		v, err := s.Pop()
		if err != nil {
			t.Fatalf("Pop at expected %d: %v", i, err)
		}
		if v != i {
			t.Fatalf("Pop() = %d, want %d", v, i)
		}
	}
	if !s.Empty() {
		t.Fatal("expected stack empty after popping everything")
	}
	if _, err := s.Pop(); err != stack.ErrEmpty {
		t.Fatalf("Pop() on empty = %v, want ErrEmpty", err)
	}
	if used := m.UsedBytes(); used != 0 {
		t.Fatalf("UsedBytes after drain = %d, want 0", used)
	}
}
