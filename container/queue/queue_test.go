package queue_test

import (
	"math/rand"
	"testing"

	"github.com/xxlstore/xxlstore/container/queue"
	"github.com/xxlstore/xxlstore/internal/arena"
	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/manager"
	"github.com/xxlstore/xxlstore/internal/pool"
)

func TestQueueOrderPreservation(t *testing.T) {
	files := []diskfile.File{diskfile.NewSimDisk(0, 1 << 21)}
	m := manager.New(files)
	defer m.Close()

	a := arena.New(4096)
	strategy := manager.SingleDisk(0)
	wp := pool.NewWrite(m, a, 4096, 3)
	pp := pool.NewPrefetch(m, a, 4096, 1)

	q := queue.New[int64](m, wp, pp, a, strategy, 4096)

	var reference []int64
	rnd := rand.New(rand.NewSource(7))
	const ops = 20000

	for i := 0; i < ops; i++ {
		if len(reference) > 0 && rnd.Intn(2) == 0 {
			want := reference[0]
			reference = reference[1:]
			got, err := q.Dequeue()
			if err != nil {
				t.Fatalf("Dequeue at op %d: %v", i, err)
			}
			if got != want {
				t.Fatalf("op %d: Dequeue() = %d, want %d", i, got, want)
			}
		} else {
			v := rnd.Int63()
			if err := q.Enqueue(v); err != nil {
				t.Fatalf("Enqueue at op %d: %v", i, err)
			}
			reference = append(reference, v)
		}
	}

	for len(reference) > 0 {
		want := reference[0]
		reference = reference[1:]
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("final drain: %v", err)
		}
		if got != want {
			t.Fatalf("final drain: Dequeue() = %d, want %d", got, want)
		}
	}
	if !q.Empty() {
		t.Fatal("expected queue empty after draining reference")
	}
	if _, err := q.Dequeue(); err != queue.ErrEmpty {
		t.Fatalf("Dequeue() on empty = %v, want ErrEmpty", err)
	}
	if used := m.UsedBytes(); used != 0 {
		t.Fatalf("UsedBytes after drain = %d, want 0", used)
	}
}
