// Package diskqueue implements the per-disk FIFO scheduler: one dedicated
// I/O worker goroutine drains a single disk's pending requests serially,
// biased toward continuing the current operation (read or write) to reduce
// head-contention on rotating media, matching spec.md's disk queue
// component.
//
// The worker/multiplexer shape is adapted from the teacher's
// internal/spinner single-goroutine event loop: one owning goroutine reads
// from an inbound channel and a close channel, and performs each request's
// file I/O itself before taking the next one.
package diskqueue

import (
	"log/slog"

	"github.com/xxlstore/xxlstore/internal/bid"
	"github.com/xxlstore/xxlstore/internal/diskfile"
	"github.com/xxlstore/xxlstore/internal/ioreq"
)

// Queue owns one disk's worker goroutine and its pending-request lists.
type Queue struct {
	file  diskfile.File
	disk  bid.DiskID
	in    chan *ioreq.Request
	close chan struct{}
	log   *slog.Logger
}

func New(file diskfile.File) *Queue {
	q := &Queue{
		file:  file,
		disk:  file.DiskNumber(),
		in:    make(chan *ioreq.Request, 256),
		close: make(chan struct{}),
		log:   slog.Default().With("disk", file.DiskNumber()),
	}
	go q.run()
	return q
}

// ARead enqueues an asynchronous read and returns immediately with a
// request handle. buf must remain valid until the request completes.
func (q *Queue) ARead(buf []byte, off int64, cb ioreq.CompletionFunc) *ioreq.Request {
	return q.enqueue(ioreq.Read, buf, off, cb)
}

// AWrite enqueues an asynchronous write and returns immediately.
func (q *Queue) AWrite(buf []byte, off int64, cb ioreq.CompletionFunc) *ioreq.Request {
	return q.enqueue(ioreq.Write, buf, off, cb)
}

func (q *Queue) enqueue(dir ioreq.Direction, buf []byte, off int64, cb ioreq.CompletionFunc) *ioreq.Request {
	req := ioreq.New(q.disk, off, int64(len(buf)), dir, buf, cb)
	req.MarkQueued()
	q.in <- req
	return req
}

// Stop signals the worker to exit once its current queues drain. Pending
// requests already enqueued still run to completion.
func (q *Queue) Stop() { close(q.close) }

func (q *Queue) run() {
	var reads, writes []*ioreq.Request
	bias := ioreq.Read

	drainPending := func() {
		for {
			select {
			case r := <-q.in:
				q.classify(r, &reads, &writes)
			default:
				return
			}
		}
	}

	for {
		if len(reads) == 0 && len(writes) == 0 {
			select {
			case r := <-q.in:
				q.classify(r, &reads, &writes)
			case <-q.close:
				drainPending()
				if len(reads) == 0 && len(writes) == 0 {
					return
				}
			}
			continue
		}

		drainPending()

		var next *ioreq.Request
		switch {
		case bias == ioreq.Read && len(reads) > 0:
			next, reads = reads[0], reads[1:]
		case bias == ioreq.Write && len(writes) > 0:
			next, writes = writes[0], writes[1:]
		case len(reads) > 0:
			next, reads = reads[0], reads[1:]
			bias = ioreq.Read
		default:
			next, writes = writes[0], writes[1:]
			bias = ioreq.Write
		}
		q.execute(next)
	}
}

func (q *Queue) classify(r *ioreq.Request, reads, writes *[]*ioreq.Request) {
	if r.Dir == ioreq.Read {
		*reads = append(*reads, r)
	} else {
		*writes = append(*writes, r)
	}
}

func (q *Queue) execute(req *ioreq.Request) {
	req.MarkInFlight()
	var err error
	if req.Dir == ioreq.Read {
		err = q.file.ReadAt(req.Buf, req.Offset)
	} else {
		err = q.file.WriteAt(req.Buf, req.Offset)
	}
	if err != nil {
		q.log.Error("ioFailed", "dir", req.Dir, "off", req.Offset, "len", req.Length, "err", err)
	}
	req.Complete(err)
}
