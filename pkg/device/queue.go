package device

import (
	"fmt"
	"sync"

	"github.com/calvergne/panelkit/pkg/mtx"
)

// Event is the completion handle for one issued queue operation. Wait blocks
// until the operation has executed and returns the queue's sticky error if
// the operation, or any operation before it, failed.
type Event struct {
	done chan struct{}
	err  error
}

// Wait blocks until the operation completes.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// Done reports completion without blocking.
func (e *Event) Done() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

type queueOp struct {
	run func()
	ev  *Event
}

// Queue is an ordered stream of asynchronous operations executed by a single
// worker goroutine, modelling one execution engine of the accelerator.
// Operations on the same queue execute in issue order; overlap between copy
// and compute comes from issuing to distinct queues and ordering across them
// with events.
//
// A panic inside an operation marks the queue failed: the panicking
// operation's event carries the error and every later operation completes
// immediately with the same error. This is the structured replacement for the
// runtime's historical abort-on-error behavior.
type Queue struct {
	dev *Device
	ops chan queueOp

	mu     sync.Mutex
	err    error
	closed bool
}

// NewQueue creates an execution queue on the device and starts its worker.
func (d *Device) NewQueue() *Queue {
	q := &Queue{
		dev: d,
		ops: make(chan queueOp, 64),
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	for op := range q.ops {
		if err := q.Err(); err != nil {
			op.ev.err = err
			close(op.ev.done)
			continue
		}
		q.execute(op)
	}
}

func (q *Queue) execute(op queueOp) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrQueueFailed, r)
			q.mu.Lock()
			q.err = err
			q.mu.Unlock()
			op.ev.err = err
		}
		close(op.ev.done)
	}()
	op.run()
}

// Err returns the queue's sticky error, if any.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// submit enqueues an operation and returns its completion event. Submitting
// to a closed queue panics; that is a caller bug, not a device fault.
func (q *Queue) submit(run func()) *Event {
	ev := &Event{done: make(chan struct{})}
	q.ops <- queueOp{run: run, ev: ev}
	return ev
}

// Launch issues a compute kernel onto the queue.
func (q *Queue) Launch(kernel func()) *Event {
	return q.submit(kernel)
}

// WaitEvent orders this queue after e: operations issued later will not start
// until e has completed. A failure carried by e poisons this queue too.
func (q *Queue) WaitEvent(e *Event) {
	q.submit(func() {
		if err := e.Wait(); err != nil {
			panic(err)
		}
	})
}

// Sync blocks until every previously issued operation has completed and
// returns the queue's sticky error.
func (q *Queue) Sync() error {
	return q.submit(func() {}).Wait()
}

// Close drains the queue and stops its worker. The queue must not be used
// afterwards.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return q.err
	}
	q.closed = true
	q.mu.Unlock()
	err := q.Sync()
	close(q.ops)
	return err
}

// CopyAsync issues an element-wise strided copy between two matrix windows of
// equal shape, in either direction (host→device, device→host, or on-device).
// The copy executes in queue order; the returned event completes when the
// destination window is fully written.
func CopyAsync[T mtx.Scalar](q *Queue, dst, src mtx.Matrix[T]) *Event {
	if dst.Rows != src.Rows || dst.Cols != src.Cols {
		panic("device: copy shape mismatch")
	}
	return q.submit(func() {
		for j := 0; j < src.Cols; j++ {
			copy(dst.Col(j), src.Col(j))
		}
	})
}

// Copy is the synchronous variant of CopyAsync.
func Copy[T mtx.Scalar](q *Queue, dst, src mtx.Matrix[T]) error {
	return CopyAsync(q, dst, src).Wait()
}
