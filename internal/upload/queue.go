package upload

import (
	"context"
	"sync"

	"github.com/mzyy94/airbeagle/internal/beagle"
	"github.com/mzyy94/airbeagle/internal/raster"
)

// DefaultQueueSize is the number of compressed pages buffered between the
// renderer and the device.
const DefaultQueueSize = 3

// Page is one compressed page together with the index it is uploaded under.
type Page struct {
	Index int
	Data  raster.Compressed
}

// Queue is a bounded FIFO between exactly one producer and one consumer.
type Queue struct {
	ch   chan Page
	done chan struct{}

	abortOnce sync.Once
	closeOnce sync.Once
	err       error
}

// NewQueue returns a queue holding at most size pages. Sizes below one are
// raised to one.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch:   make(chan Page, size),
		done: make(chan struct{}),
	}
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Push appends p, blocking while the queue is full. It fails with the abort
// error once Abort was called, or with a CancelledError when ctx is done.
// Push must not be called after Close.
func (q *Queue) Push(ctx context.Context, p Page) error {
	select {
	case <-q.done:
		return q.err
	default:
	}
	select {
	case q.ch <- p:
		return nil
	case <-q.done:
		return q.err
	case <-ctx.Done():
		return &beagle.CancelledError{Err: ctx.Err()}
	}
}

// Pop removes the oldest page, blocking while the queue is empty. ok is false
// once the queue is closed and drained.
func (q *Queue) Pop(ctx context.Context) (p Page, ok bool, err error) {
	select {
	case <-q.done:
		return Page{}, false, q.err
	default:
	}
	select {
	case p, ok = <-q.ch:
		return p, ok, nil
	case <-q.done:
		return Page{}, false, q.err
	case <-ctx.Done():
		return Page{}, false, &beagle.CancelledError{Err: ctx.Err()}
	}
}

// Close marks the end of the stream. Pages already queued are still delivered.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Abort makes every pending and future Push and Pop return err. Only the
// first call has an effect.
func (q *Queue) Abort(err error) {
	q.abortOnce.Do(func() {
		q.err = err
		close(q.done)
	})
}
