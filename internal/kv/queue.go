// ABOUTME: Single-writer persistence queue with completion handles
// ABOUTME: Serializes full-blob writes per store and logs every failed write

package kv

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/tatasbox/internal/metrics"
)

// ErrQueueClosed is reported by writes submitted after Close.
var ErrQueueClosed = errors.New("persistence queue closed")

const (
	queueBufferSize     = 256
	defaultWriteTimeout = 10 * time.Second
)

// Op is one persistence operation run by a Queue.
type Op func(ctx context.Context) error

// Write is the completion handle for an enqueued Op.
// A nil *Write behaves as an already-completed successful write.
type Write struct {
	done chan struct{}
	err  error
}

func newWrite() *Write {
	return &Write{done: make(chan struct{})}
}

// Completed returns a Write that has already finished with err.
func Completed(err error) *Write {
	w := newWrite()
	w.finish(err)
	return w
}

func (w *Write) finish(err error) {
	w.err = err
	close(w.done)
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel closed when the write has finished.
func (w *Write) Done() <-chan struct{} {
	if w == nil {
		return closedChan
	}
	return w.done
}

// Err returns the write's result. Only meaningful after Done is closed.
func (w *Write) Err() error {
	if w == nil {
		return nil
	}
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Wait blocks until the write finishes or ctx is done.
func (w *Write) Wait(ctx context.Context) error {
	if w == nil {
		return nil
	}
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type queuedOp struct {
	op    Op
	write *Write
}

// Queue runs Ops one at a time in submission order.
type Queue struct {
	name    string
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ops    chan queuedOp
	wg     sync.WaitGroup
}

// NewQueue starts a queue. name labels logs and metrics (e.g. "goals").
func NewQueue(name string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		name:    name,
		logger:  logger.With("component", "kv-queue", "store", name),
		timeout: defaultWriteTimeout,
		ops:     make(chan queuedOp, queueBufferSize),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Enqueue submits op and returns its completion handle. It only blocks when
// the buffer is full.
func (q *Queue) Enqueue(op Op) *Write {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Error("write dropped: queue closed")
		metrics.RecordKVWrite(q.name, ErrQueueClosed)
		return Completed(ErrQueueClosed)
	}

	w := newWrite()
	metrics.AddQueueDepth(q.name, 1)
	q.ops <- queuedOp{op: op, write: w}
	return w
}

func (q *Queue) run() {
	defer q.wg.Done()

	for item := range q.ops {
		metrics.AddQueueDepth(q.name, -1)

		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := item.op(ctx)
		cancel()

		metrics.RecordKVWrite(q.name, err)
		if err != nil {
			q.logger.Error("persist failed", "error", err)
		}
		item.write.finish(err)
	}
}

// Close stops accepting writes, runs everything already queued, and waits
// for the worker to exit. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ops)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
