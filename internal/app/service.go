// Package service wires storage, enrichment and summaries into the
// operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	jobqueue "github.com/okian/aura/internal/adapters/mq/queue"
	workerpool "github.com/okian/aura/internal/adapters/mq/worker"
	repository "github.com/okian/aura/internal/adapters/repository"
	"github.com/okian/aura/internal/domain/dedupe"
	"github.com/okian/aura/internal/domain/features"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/scoring"
	"github.com/okian/aura/internal/domain/summary"
	"github.com/okian/aura/internal/domain/types"
	"github.com/okian/aura/pkg/logger"
	"github.com/okian/aura/pkg/metrics"
)

const (
	defaultQueueSize     = 10_000
	defaultDedupeSize    = 100_000
	defaultShardCount    = 8
	defaultRetention     = 365 * 24 * time.Hour
	defaultSweepInterval = time.Hour
	stopTimeout          = 10 * time.Second
)

// Service implements the API dependencies for motor telemetry.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ownsStore  bool
	deduper    dedupe.Deduper
	jobs       jobqueue.Queue
	workerPool *workerpool.Pool
	extractor  features.Extractor
	summarizer *summary.Summarizer
	locks      *subjectLocks

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	shardCount    int
	capacities    map[repository.Kind]int
	retention     time.Duration
	sweepInterval time.Duration
	extractorOpts []features.Option
	scoreWeights  map[string]float64
	now           func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. Extraction, summaries and batch idempotency
// work right away; storage and the worker pool come up in Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		shardCount:  defaultShardCount,
		capacities: map[repository.Kind]int{
			repository.KindSamples:      repository.DefaultSampleCapacity,
			repository.KindAttempts:     repository.DefaultAttemptCapacity,
			repository.KindInteractions: repository.DefaultInteractionCapacity,
		},
		retention:     defaultRetention,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		locks:         newSubjectLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.extractor = features.NewWindowExtractor(s.extractorOpts...)
	s.summarizer = summary.New(summary.WithScorer(scoring.NewMotorScorer(scoring.WithWeights(s.scoreWeights))))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start opens the store (unless one was injected), starts the worker pool
// and the retention sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting telemetry service...")

	if s.store == nil || s.ownsStore {
		storeOpts := []repository.Option{
			repository.WithShardCount(s.shardCount),
			repository.WithClock(s.now),
		}
		for kind, n := range s.capacities {
			storeOpts = append(storeOpts, repository.WithCapacity(kind, n))
		}
		s.store = repository.NewMemoryStore(ctx, storeOpts...)
		s.ownsStore = true
		s.logger.Info(ctx, "using memory store", logger.Int("shards", s.shardCount))
	}

	q := jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)
	s.jobs = q
	s.workerPool = workerpool.NewPool(s.workerCount, q, s.extractor)
	s.workerPool.Start(ctx)

	s.stopCh = make(chan struct{})
	if s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.runSweeper(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "telemetry service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("retention", s.retention),
	)
	return nil
}

// Stop drains the worker pool, stops the sweeper and closes an owned store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping telemetry service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	close(s.stopCh)
	s.wg.Wait()

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "telemetry service stopped")
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) ready(subjectID string) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	if strings.TrimSpace(subjectID) == "" {
		return fmt.Errorf("%w: missing subject id", model.ErrInvalidInput)
	}
	return nil
}

func newResult() types.BatchResult {
	return types.BatchResult{Rejected: []types.RejectedItem{}}
}

// accept closes out a batch: it reports rejections and returns
// ErrAllRejected when nothing is left to append.
func accept(kind repository.Kind, res *types.BatchResult, accepted int) error {
	if n := len(res.Rejected); n > 0 {
		metrics.RecordItemsRejected(string(kind), n)
	}
	if accepted == 0 {
		return fmt.Errorf("%s: %w", kind, ErrAllRejected)
	}
	res.Accepted = accepted
	return nil
}

func fill(res *types.BatchResult, meta repository.BucketMeta) {
	res.BucketRef = meta.BucketRef
	res.BucketNumber = meta.BucketNumber
	res.Total = meta.Total
}

// AppendSamples validates and stores a batch of pointer samples. round is
// used for items that carry no round of their own; 0 means none.
func (s *Service) AppendSamples(ctx context.Context, subjectID string, round int, inputs []model.SampleInput) (types.BatchResult, error) {
	if err := s.ready(subjectID); err != nil {
		return types.BatchResult{}, err
	}
	res := newResult()
	if len(inputs) == 0 {
		return res, ErrEmptyBatch
	}

	samples := make([]model.PointerSample, 0, len(inputs))
	for i, in := range inputs {
		smp, err := in.Sample(round)
		if err != nil {
			res.Reject(i, err)
			continue
		}
		samples = append(samples, smp)
	}
	if err := accept(repository.KindSamples, &res, len(samples)); err != nil {
		return res, err
	}

	unlock := s.locks.Lock(subjectID)
	defer unlock()

	meta, err := s.store.AppendSamples(ctx, subjectID, samples)
	if err != nil {
		metrics.RecordErrorByComponent("service", "append_samples")
		return res, fmt.Errorf("append samples for %s: %w", subjectID, err)
	}
	fill(&res, meta)
	metrics.RecordSamplesIngested(len(samples))
	return res, nil
}

// pending is an accepted attempt waiting for its features.
type pending struct {
	attempt model.Attempt
	input   *features.Input
}

// AppendAttempts validates, enriches and stores a batch of attempts. The
// subject stays locked from the duplicate check until the append, so the
// previous-click lookup and the stored order always agree.
func (s *Service) AppendAttempts(ctx context.Context, subjectID string, inputs []model.AttemptInput) (types.BatchResult, error) {
	if err := s.ready(subjectID); err != nil {
		return types.BatchResult{}, err
	}
	res := newResult()
	if len(inputs) == 0 {
		return res, ErrEmptyBatch
	}

	unlock := s.locks.Lock(subjectID)
	defer unlock()

	stored, err := s.store.Attempts(ctx, subjectID, 0)
	if err != nil {
		return res, fmt.Errorf("load attempts for %s: %w", subjectID, err)
	}
	ids := make(map[string]struct{}, len(stored)+len(inputs))
	lastClick := make(map[int]float64)
	for i := range stored {
		ids[stored[i].AttemptID] = struct{}{}
		if t, ok := stored[i].ClickTms(); ok {
			lastClick[stored[i].Round] = t
		}
	}

	samples := make(map[int][]model.PointerSample)
	batch := make([]pending, 0, len(inputs))
	for i, in := range inputs {
		a, err := in.Attempt()
		if err != nil {
			res.Reject(i, err)
			continue
		}
		if _, dup := ids[a.AttemptID]; dup {
			res.Reject(i, ErrDuplicateAttempt)
			continue
		}
		ids[a.AttemptID] = struct{}{}
		a.ReceivedAt = s.now().UTC()

		var prev *float64
		if t, ok := lastClick[a.Round]; ok {
			prev = &t
		}

		click, clicked := a.ClickTms()
		if !clicked {
			if prev != nil && a.DespawnTms != nil {
				gap := *a.DespawnTms - *prev
				a.Timing.InterTapMs = &gap
			}
			a.Enrichment = model.Enrichment{Status: model.EnrichmentSkipped}
			metrics.RecordEnrichment(string(model.EnrichmentSkipped))
			batch = append(batch, pending{attempt: a})
			continue
		}
		lastClick[a.Round] = click

		window, ok := samples[a.Round]
		if !ok {
			window, err = s.store.Samples(ctx, subjectID, a.Round)
			if err != nil {
				return res, fmt.Errorf("load samples for %s: %w", subjectID, err)
			}
			samples[a.Round] = window
		}
		batch = append(batch, pending{attempt: a, input: &features.Input{
			Samples:      window,
			SpawnTms:     a.SpawnTms,
			ClickTms:     click,
			Target:       a.Target,
			PrevClickTms: prev,
			ClickX:       a.Click.X,
			ClickY:       a.Click.Y,
		}})
	}
	if err := accept(repository.KindAttempts, &res, len(batch)); err != nil {
		return res, err
	}

	if err := s.enrich(ctx, subjectID, batch); err != nil {
		return res, err
	}

	attempts := make([]model.Attempt, len(batch))
	for i := range batch {
		attempts[i] = batch[i].attempt
	}
	meta, err := s.store.AppendAttempts(ctx, subjectID, attempts)
	if err != nil {
		metrics.RecordErrorByComponent("service", "append_attempts")
		return res, fmt.Errorf("append attempts for %s: %w", subjectID, err)
	}
	fill(&res, meta)
	metrics.RecordAttemptsIngested(len(attempts))
	return res, nil
}

// enrich runs extraction for every clicked attempt of the batch on the
// worker pool, falling back to the calling goroutine when the queue
// refuses a job.
func (s *Service) enrich(ctx context.Context, subjectID string, batch []pending) error {
	type waiting struct {
		pos   int
		reply <-chan jobqueue.Result
	}
	var waits []waiting
	results := make(map[int]jobqueue.Result, len(batch))

	for pos := range batch {
		in := batch[pos].input
		if in == nil {
			continue
		}
		job, reply := jobqueue.NewJob(pos, *in)
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			metrics.RecordQueueInlineFallback()
			results[pos] = workerpool.Process(ctx, s.extractor, pos, *in)
			continue
		}
		waits = append(waits, waiting{pos: pos, reply: reply})
	}

	for _, w := range waits {
		select {
		case r := <-w.reply:
			if errors.Is(r.Err, jobqueue.ErrStopped) {
				metrics.RecordQueueInlineFallback()
				r = workerpool.Process(ctx, s.extractor, w.pos, *batch[w.pos].input)
			}
			results[w.pos] = r
		case <-ctx.Done():
			return fmt.Errorf("enrich attempts for %s: %w", subjectID, ctx.Err())
		}
	}

	for pos, r := range results {
		a := &batch[pos].attempt
		a.Enrichment = model.Enrichment{Status: r.Status}
		if r.Err != nil {
			a.Enrichment.Reason = r.Err.Error()
		}
		switch r.Status {
		case model.EnrichmentFailed:
			a.Features = model.Features{}
			s.logger.Warn(ctx, "feature extraction failed",
				logger.String("subjectID", subjectID),
				logger.String("attemptID", a.AttemptID),
				logger.Error(r.Err),
			)
		case model.EnrichmentDegraded:
			a.Features = r.Features
			s.logger.Debug(ctx, "degraded attempt window",
				logger.String("subjectID", subjectID),
				logger.String("attemptID", a.AttemptID),
				logger.Error(r.Err),
			)
		default:
			a.Features = r.Features
		}
	}
	return nil
}

// AppendInteractions validates and stores a batch of global interactions.
func (s *Service) AppendInteractions(ctx context.Context, subjectID string, xs []model.GlobalInteraction) (types.BatchResult, error) {
	if err := s.ready(subjectID); err != nil {
		return types.BatchResult{}, err
	}
	res := newResult()
	if len(xs) == 0 {
		return res, ErrEmptyBatch
	}

	valid := make([]model.GlobalInteraction, 0, len(xs))
	for i := range xs {
		if err := xs[i].Validate(); err != nil {
			res.Reject(i, err)
			continue
		}
		valid = append(valid, xs[i])
	}
	if err := accept(repository.KindInteractions, &res, len(valid)); err != nil {
		return res, err
	}

	unlock := s.locks.Lock(subjectID)
	defer unlock()

	meta, err := s.store.AppendInteractions(ctx, subjectID, valid)
	if err != nil {
		metrics.RecordErrorByComponent("service", "append_interactions")
		return res, fmt.Errorf("append interactions for %s: %w", subjectID, err)
	}
	fill(&res, meta)
	metrics.RecordInteractionsIngested(len(valid))
	return res, nil
}

// Samples returns the subject's stored samples; round 0 means every round.
func (s *Service) Samples(ctx context.Context, subjectID string, round int) ([]model.PointerSample, error) {
	if err := s.ready(subjectID); err != nil {
		return nil, err
	}
	return s.store.Samples(ctx, subjectID, round)
}

// Attempts returns the subject's enriched attempts; round 0 means every round.
func (s *Service) Attempts(ctx context.Context, subjectID string, round int) ([]model.Attempt, error) {
	if err := s.ready(subjectID); err != nil {
		return nil, err
	}
	return s.store.Attempts(ctx, subjectID, round)
}

// RoundSummary aggregates one round. A round without attempts yields an
// error wrapping summary.ErrNoData.
func (s *Service) RoundSummary(ctx context.Context, subjectID string, round int) (summary.RoundSummary, error) {
	if err := s.ready(subjectID); err != nil {
		return summary.RoundSummary{}, err
	}
	if err := model.ValidateRound(round); err != nil {
		return summary.RoundSummary{}, err
	}
	start := time.Now()
	defer func() { metrics.RecordSummaryLatency("round", float64(time.Since(start).Microseconds())/1000) }()

	attempts, err := s.store.Attempts(ctx, subjectID, round)
	if err != nil {
		return summary.RoundSummary{}, fmt.Errorf("round summary for %s: %w", subjectID, err)
	}
	rs, err := s.summarizer.Round(subjectID, round, attempts)
	if err != nil {
		if errors.Is(err, summary.ErrNoData) {
			metrics.RecordSummaryNoData()
		}
		return summary.RoundSummary{}, fmt.Errorf("round summary for %s: %w", subjectID, err)
	}
	return rs, nil
}

// SessionSummary aggregates every round of the subject.
func (s *Service) SessionSummary(ctx context.Context, subjectID string) (summary.SessionSummary, error) {
	if err := s.ready(subjectID); err != nil {
		return summary.SessionSummary{}, err
	}
	start := time.Now()
	defer func() { metrics.RecordSummaryLatency("session", float64(time.Since(start).Microseconds())/1000) }()

	attempts, err := s.store.Attempts(ctx, subjectID, 0)
	if err != nil {
		return summary.SessionSummary{}, fmt.Errorf("session summary for %s: %w", subjectID, err)
	}
	return s.summarizer.Session(subjectID, attempts), nil
}

// InteractionStats tallies the subject's global interactions.
func (s *Service) InteractionStats(ctx context.Context, subjectID string) (summary.InteractionStats, error) {
	if err := s.ready(subjectID); err != nil {
		return summary.InteractionStats{}, err
	}
	xs, err := s.store.Interactions(ctx, subjectID)
	if err != nil {
		return summary.InteractionStats{}, fmt.Errorf("interaction stats for %s: %w", subjectID, err)
	}
	return s.summarizer.Interactions(subjectID, xs), nil
}

// ExtractFeatures runs the extractor on a caller-supplied window without
// storing anything.
func (s *Service) ExtractFeatures(ctx context.Context, in features.Input) (model.Features, error) {
	f, err := s.extractor.Extract(ctx, in)
	if err != nil {
		return model.Features{}, err
	}
	if degraded, derr := features.Degraded(in); degraded {
		s.logger.Debug(ctx, "degraded window", logger.Error(derr))
	}
	return f, nil
}

// BatchKey scopes a client batch id to one subject and stream.
func BatchKey(subjectID string, kind repository.Kind, batchID string) string {
	return subjectID + "/" + string(kind) + "/" + batchID
}

// CheckBatch records batchID and reports whether it had been seen before.
func (s *Service) CheckBatch(ctx context.Context, batchID string) bool {
	return s.deduper.SeenAndRecord(ctx, batchID)
}

// ForgetBatch removes batchID so a failed batch can be retried.
func (s *Service) ForgetBatch(ctx context.Context, batchID string) {
	s.deduper.Unrecord(ctx, batchID)
}

// Sweep deletes buckets older than the retention period.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if !s.isStarted() {
		return 0, ErrNotStarted
	}
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		metrics.RecordErrorByComponent("service", "retention")
		return n, fmt.Errorf("retention sweep: %w", err)
	}
	metrics.RecordRetentionPurged(n)
	if n > 0 {
		s.logger.Info(ctx, "retention sweep", logger.Int("buckets", n), logger.String("cutoff", cutoff.Format(time.RFC3339)))
	}
	return n, nil
}

func (s *Service) runSweeper(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error(ctx, "retention sweep failed", logger.Error(err))
			}
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"dedupeEntries": s.deduper.Size(),
		"retention":     s.retention.String(),
	}

	if s.started {
		queueLen := s.jobs.Len(ctx)
		stats["queueLength"] = queueLen
		stats["busyWorkers"] = s.workerPool.Busy()
		stats["lockedSubjects"] = s.locks.Len()
		if n, err := s.store.Subjects(ctx); err == nil {
			stats["subjects"] = n
			metrics.UpdateRepositorySubjects(n)
		}
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

// Size returns the current number of remembered batch ids.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}
