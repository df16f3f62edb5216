// Package tracker buffers client telemetry and ships it in batches. It is
// fire and forget: a failed flush keeps the items for the next attempt and
// the oldest items are dropped once the buffer is full.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/aura/pkg/logger"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("batcher closed")

// FlushFunc ships one batch. Items must not be retained after it returns.
type FlushFunc[T any] func(ctx context.Context, items []T) error

// Batcher collects items and hands them to a FlushFunc in batches.
type Batcher[T any] struct {
	flush FlushFunc[T]
	opts  options
	log   logger.Logger

	mu     sync.Mutex
	buf    []T
	closed bool

	// flushMu keeps batches in order when a size-triggered flush races the ticker.
	flushMu sync.Mutex

	flushed atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a batcher and starts its flush ticker. The ticker stops when
// ctx is cancelled or the batcher is closed.
func New[T any](ctx context.Context, flush FlushFunc[T], opts ...Option) *Batcher[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = logger.Get()
	}
	b := &Batcher[T]{
		flush: flush,
		opts:  o,
		log:   log.Named(o.name),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go b.run(ctx)
	return b
}

func (b *Batcher[T]) run(ctx context.Context) {
	defer close(b.done)
	if b.opts.flushInterval == 0 {
		select {
		case <-ctx.Done():
		case <-b.stop:
		}
		return
	}

	ticker := time.NewTicker(b.opts.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				b.log.Debug(ctx, "periodic flush failed", logger.Error(err))
			}
		}
	}
}

// Add buffers item and flushes once a full batch is pending. A flush error
// is returned but the items stay buffered.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.buf = append(b.buf, item)
	b.trimLocked()
	full := len(b.buf) >= b.opts.batchSize
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// trimLocked drops the oldest items beyond maxBuffered.
func (b *Batcher[T]) trimLocked() {
	over := len(b.buf) - b.opts.maxBuffered
	if over <= 0 {
		return
	}
	clear(b.buf[:over])
	b.buf = b.buf[over:]
	b.dropped.Add(int64(over))
}

// Flush ships everything buffered, batchSize items at a time. On failure
// the unsent items go back to the front of the buffer.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	pending := b.buf
	b.buf = nil
	b.mu.Unlock()

	for len(pending) > 0 {
		n := min(len(pending), b.opts.batchSize)
		if err := b.flush(ctx, pending[:n]); err != nil {
			b.failed.Add(1)
			b.requeue(pending)
			return err
		}
		b.flushed.Add(int64(n))
		pending = pending[n:]
	}
	return nil
}

func (b *Batcher[T]) requeue(items []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]T, 0, len(items)+len(b.buf))
	merged = append(merged, items...)
	merged = append(merged, b.buf...)
	b.buf = merged
	b.trimLocked()
}

// Close stops the ticker and performs a final flush.
func (b *Batcher[T]) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.stop)
	})
	<-b.done
	return b.Flush(ctx)
}

// Pending returns the number of buffered items.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Stats reports how many items were flushed and dropped and how many
// flushes failed.
type Stats struct {
	Flushed       int64
	Dropped       int64
	FailedFlushes int64
	Pending       int
}

// Stats returns a snapshot of the counters.
func (b *Batcher[T]) Stats() Stats {
	return Stats{
		Flushed:       b.flushed.Load(),
		Dropped:       b.dropped.Load(),
		FailedFlushes: b.failed.Load(),
		Pending:       b.Pending(),
	}
}
