package pqueue_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/xxlstore/xxlstore/container/pqueue"
	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
)

func less(a, b int64) bool { return a < b }

func TestPQueueDeleteMinOrder(t *testing.T) {
	files := []diskfile.File{diskfile.NewSimDisk(0, 1 << 22)}
	m := manager.New(files)
	defer m.Close()

	a := arena.New(4096)
	strategy := manager.SingleDisk(0)
	wp := pool.NewWrite(m, a, 4096, 2)
	pp := pool.NewPrefetch(m, a, 4096, 2)

	q := pqueue.New[int64](less, m, wp, pp, a, strategy, 4096, 64)

	rnd := rand.New(rand.NewSource(11))
	const n = 5000
	want := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		v := rnd.Int63n(1 << 30)
		want = append(want, v)
		if err := q.Insert(v); err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	if q.Size() != int64(n) {
		t.Fatalf("Size() = %d, want %d", q.Size(), n)
	}

	for i, w := range want {
		got, err := q.DeleteMin()
		if err != nil {
			t.Fatalf("DeleteMin at %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("DeleteMin() #%d = %d, want %d", i, got, w)
		}
	}
	if !q.Empty() {
		t.Fatal("expected queue empty after draining all elements")
	}
	if _, err := q.DeleteMin(); err != pqueue.ErrEmpty {
		t.Fatalf("DeleteMin() on empty = %v, want ErrEmpty", err)
	}
}
