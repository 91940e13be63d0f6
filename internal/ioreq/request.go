// Package ioreq implements the async I/O request handle described by the
// block manager's contract: a reference-counted handle that moves through
// created -> queued -> in-flight -> {completed, cancelled}, with a
// completion handler that fires at most once from the disk's I/O worker
// (never for a request cancelled before it was dispatched).
//
// The request/reply shape is adapted from the promise-style channel
// protocol in the teacher's concurrent.go multiplexer: a caller gets back
// a handle immediately and either blocks on it later or lets a completion
// callback observe the result.
package ioreq

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/xxlstore/xxlstore/internal/bid"
)

type State int32

const (
	Created State = iota
	Queued
	InFlight
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Queued:
		return "queued"
	case InFlight:
		return "in-flight"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Direction int

const (
	Read Direction = iota
	Write
)

// CompletionFunc is invoked at most once, from the I/O worker that retires
// the request. It must not block and must not re-enter the owning pool's
// lock (it typically just records err and posts an event).
type CompletionFunc func(req *Request, err error)

// Request is a handle to one in-flight I/O operation. Multiple owners
// (the issuer and a pool) may hold the same pointer; refs tracks that
// sharing for diagnostic purposes even though Go's GC reclaims the value
// whenever it is unreachable.
type Request struct {
	Disk   bid.DiskID
	Offset int64
	Length int64
	Dir    Direction
	Buf    []byte

	mu       sync.Mutex
	state    State
	err      error
	done     chan struct{}
	cb       CompletionFunc
	refs     int32
	canceled bool
}

var ErrCancelled = errors.New("ioreq: request cancelled")

func New(disk bid.DiskID, off, length int64, dir Direction, buf []byte, cb CompletionFunc) *Request {
	return &Request{
		Disk:   disk,
		Offset: off,
		Length: length,
		Dir:    dir,
		Buf:    buf,
		state:  Created,
		done:   make(chan struct{}),
		cb:     cb,
		refs:   1,
	}
}

// Failed builds a request that is already Completed with err, for callers
// that discover an error before a request could even be queued (e.g. an
// out-of-range disk id). It gives them a handle satisfying the normal
// wait/poll contract instead of a nil *Request, so the error still
// surfaces at the first Wait as spec.md section 7 requires rather than
// panicking the caller.
func Failed(disk bid.DiskID, err error) *Request {
	r := &Request{Disk: disk, state: Completed, err: err, done: make(chan struct{})}
	close(r.done)
	return r
}

func (r *Request) Retain() { atomic.AddInt32(&r.refs, 1) }
func (r *Request) Release() { atomic.AddInt32(&r.refs, -1) }

func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// MarkQueued/MarkInFlight are called by the disk queue as the request moves
// through the pipeline; they are no-ops once the request has left in-flight.
func (r *Request) MarkQueued() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Created {
		r.state = Queued
	}
}

func (r *Request) MarkInFlight() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Queued || r.state == Created {
		r.state = InFlight
	}
}

// Complete performs the single created->completed transition. It is called
// by the disk's I/O worker exactly once. The completion handler, if any,
// runs before done is closed, satisfying the happens-before guarantee that
// Wait relies on.
func (r *Request) Complete(err error) {
	r.mu.Lock()
	if r.state == Completed || r.state == Cancelled {
		r.mu.Unlock()
		return
	}
	r.state = Completed
	r.err = err
	cb := r.cb
	r.mu.Unlock()

	if cb != nil {
		cb(r, err)
	}
	close(r.done)
}

// Cancel marks the request cancelled if it has not yet completed. Cancelling
// a request already dispatched to the OS is best-effort: the underlying
// read/write may still land, in which case the next Wait observes
// Completed rather than Cancelled (see the open question in the design
// notes about aio_cancel semantics).
func (r *Request) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Completed || r.state == Cancelled {
		return false
	}
	r.canceled = true
	if r.state == Created || r.state == Queued {
		r.state = Cancelled
		r.err = ErrCancelled
		close(r.done)
		return true
	}
	// in-flight: best-effort, the I/O worker will still call Complete
	return true
}

// Poll reports whether the request has left the in-flight state.
func (r *Request) Poll() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the request is completed or cancelled. It is
// idempotent and safe to call from multiple goroutines.
func (r *Request) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// WaitAll blocks until every request has completed, returning a combined
// error if any failed.
func WaitAll(reqs []*Request) error {
	var errs []error
	for _, r := range reqs {
		if r == nil {
			continue
		}
		if err := r.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WaitAny blocks until at least one request has completed and returns its
// index. Ties are broken arbitrarily by reflect.Select, which is adequate
// here since wait_any is not a hot-path primitive.
func WaitAny(reqs []*Request) int {
	cases := make([]reflect.SelectCase, len(reqs))
	for i, r := range reqs {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(r.done)}
	}
	chosen, _, _ := reflect.Select(cases)
	return chosen
}
