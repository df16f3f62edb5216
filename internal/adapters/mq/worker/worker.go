// Package worker runs feature extraction for queued attempts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/aura/internal/adapters/mq/queue"
	"github.com/okian/aura/internal/domain/features"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/pkg/logger"
	"github.com/okian/aura/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs off the queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// Process runs the extractor for one attempt and classifies the outcome.
// A panic in the extractor becomes a failed result. The pool calls it for
// queued jobs and callers use it directly when the queue refuses a job.
func Process(ctx context.Context, ext features.Extractor, index int, in features.Input) (res queue.Result) {
	res.Index = index
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = queue.Result{
				Index:  index,
				Status: model.EnrichmentFailed,
				Err:    fmt.Errorf("%w: %v", ErrExtractorPanic, r),
			}
		}
		metrics.RecordExtractionLatency(float64(time.Since(start).Microseconds()) / 1000)
		metrics.RecordEnrichment(string(res.Status))
	}()

	f, err := ext.Extract(ctx, in)
	if err != nil {
		res.Status = model.EnrichmentFailed
		res.Err = err
		return res
	}
	res.Features = f
	res.Status = model.EnrichmentOK
	if degraded, derr := features.Degraded(in); degraded {
		res.Status = model.EnrichmentDegraded
		res.Err = derr
	}
	return res
}

// InMemoryWorker implements Worker for extraction jobs.
type InMemoryWorker struct {
	queue     Queue
	extractor features.Extractor
	name      string

	// busy is shared with the pool; nil for a standalone worker.
	busy      *atomic.Int64
	processed *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, ext features.Extractor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		extractor: ext,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.handle(ctx, job)
		}
	}
}

func (w *InMemoryWorker) handle(ctx context.Context, job queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	if w.busy != nil {
		w.busy.Add(1)
		defer w.busy.Add(-1)
	}
	start := time.Now()
	res := Process(ctx, w.extractor, job.Index, job.Input)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	if w.processed != nil {
		w.processed.Add(1)
	}

	switch {
	case res.Status == model.EnrichmentFailed:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "extraction_failed")
		w.logger.Warn(ctx, "extraction failed",
			logger.Int("index", job.Index),
			logger.Error(res.Err),
		)
	case errors.Is(res.Err, features.ErrDegradedWindow):
		w.logger.Debug(ctx, "degraded window", logger.Int("index", job.Index), logger.Error(res.Err))
	}

	job.Reply <- res
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown     chan struct{}
	shutdownOnce sync.Once

	busy              atomic.Int64
	processed         atomic.Int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers sharing one extractor.
// A count below one selects runtime.NumCPU()*2.
func NewPool(workerCount int, q Queue, ext features.Extractor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             q,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, ext, wopts...)
		w.busy = &p.busy
		w.processed = &p.processed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerBusy(0)
	metrics.UpdateWorkerJobsPerSecond(0.0)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Busy returns the number of workers currently running a job.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	now := time.Now()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerJobsPerSecond(float64(p.processed.Swap(0)) / elapsed)
	}
	metrics.UpdateWorkerBusy(p.Busy())
	p.lastProcessedTime = now
}

// Shutdown closes the queue when it can be closed and lets the workers
// drain it. Workers still busy when ctx (or the pool timeout) expires are
// told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	drain := false
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		} else {
			drain = true
		}
	}
	defer p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	if drain {
		for _, w := range p.workers {
			select {
			case <-w.done:
			case <-shutdownCtx.Done():
			}
		}
	}

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
