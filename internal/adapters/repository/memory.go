package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/pkg/metrics"
)

// stream is an append-only sequence of buckets.
type stream[T any] struct {
	buckets []*bucket[T]
	total   int
}

func (s *stream[T]) last() *bucket[T] {
	if len(s.buckets) == 0 {
		return nil
	}
	return s.buckets[len(s.buckets)-1]
}

func (s *stream[T]) append(items []T, tms func(T) float64, capacity int, now time.Time) (BucketMeta, int) {
	rollovers := 0
	open := func(number int) *bucket[T] {
		if len(s.buckets) > 0 {
			rollovers++
		}
		b := newBucket[T](number, now)
		s.buckets = append(s.buckets, b)
		return b
	}
	touched := spill(s.last(), items, tms, capacity, open)
	s.total += len(items)
	if len(touched) == 0 {
		return BucketMeta{Total: s.total}, 0
	}
	meta := touched[len(touched)-1].meta
	meta.Total = s.total
	return meta, rollovers
}

func (s *stream[T]) all() []T {
	out := make([]T, 0, s.total)
	for _, b := range s.buckets {
		out = append(out, b.items...)
	}
	return out
}

// purge drops buckets created before cutoff.
func (s *stream[T]) purge(cutoff time.Time) int {
	kept := s.buckets[:0]
	removed := 0
	for _, b := range s.buckets {
		if b.meta.CreatedAt.Before(cutoff) {
			s.total -= len(b.items)
			removed++
			continue
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(s.buckets); i++ {
		s.buckets[i] = nil
	}
	s.buckets = kept
	return removed
}

type subject struct {
	samples      stream[model.PointerSample]
	attempts     stream[model.Attempt]
	interactions stream[model.GlobalInteraction]
}

func (s *subject) empty() bool {
	return len(s.samples.buckets) == 0 && len(s.attempts.buckets) == 0 && len(s.interactions.buckets) == 0
}

type shard struct {
	mu       sync.RWMutex
	subjects map[string]*subject
}

// MemoryStore is an in-process Store. Subjects are spread over shards by
// the xxhash of their id; each shard has its own lock.
type MemoryStore struct {
	opts   options
	shards []*shard

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a memory store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemoryStore{
		opts:     o,
		shards:   make([]*shard, o.shardCount),
		stopChan: make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{subjects: make(map[string]*subject)}
	}

	metrics.UpdateRepositoryShardCount(o.shardCount)
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) shardFor(subjectID string) *shard {
	return s.shards[xxhash.Sum64String(subjectID)%uint64(len(s.shards))]
}

// write runs fn on the subject under the shard's write lock, creating it.
func (s *MemoryStore) write(subjectID string, fn func(*subject)) {
	sh := s.shardFor(subjectID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sub, ok := sh.subjects[subjectID]
	if !ok {
		sub = &subject{}
		sh.subjects[subjectID] = sub
	}
	fn(sub)
}

// read runs fn on the subject under the shard's read lock. Unknown
// subjects are passed as an empty subject.
func (s *MemoryStore) read(subjectID string, fn func(*subject)) {
	sh := s.shardFor(subjectID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sub, ok := sh.subjects[subjectID]
	if !ok {
		sub = &subject{}
	}
	fn(sub)
}

func observe(start time.Time, record func(float64)) {
	record(float64(time.Since(start).Microseconds()) / 1000)
}

func recordRollovers(kind Kind, n int) {
	for i := 0; i < n; i++ {
		metrics.RecordBucketRollover(string(kind))
	}
}

// AppendSamples implements Store.
func (s *MemoryStore) AppendSamples(ctx context.Context, subjectID string, samples []model.PointerSample) (BucketMeta, error) {
	if err := ctx.Err(); err != nil {
		return BucketMeta{}, fmt.Errorf("append samples: %w", err)
	}
	defer observe(time.Now(), metrics.RecordRepositoryAppendLatency)

	var (
		meta      BucketMeta
		rollovers int
	)
	s.write(subjectID, func(sub *subject) {
		meta, rollovers = sub.samples.append(samples, sampleTms, s.opts.capacity[KindSamples], s.opts.now())
	})
	recordRollovers(KindSamples, rollovers)
	return meta, nil
}

// Samples implements Store.
func (s *MemoryStore) Samples(ctx context.Context, subjectID string, round int) ([]model.PointerSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("samples: %w", err)
	}
	defer observe(time.Now(), metrics.RecordRepositoryQueryLatency)

	var all []model.PointerSample
	s.read(subjectID, func(sub *subject) { all = sub.samples.all() })
	return orderSamples(all, round), nil
}

// AppendAttempts implements Store.
func (s *MemoryStore) AppendAttempts(ctx context.Context, subjectID string, attempts []model.Attempt) (BucketMeta, error) {
	if err := ctx.Err(); err != nil {
		return BucketMeta{}, fmt.Errorf("append attempts: %w", err)
	}
	defer observe(time.Now(), metrics.RecordRepositoryAppendLatency)

	var (
		meta      BucketMeta
		rollovers int
	)
	s.write(subjectID, func(sub *subject) {
		meta, rollovers = sub.attempts.append(attempts, attemptTms, s.opts.capacity[KindAttempts], s.opts.now())
	})
	recordRollovers(KindAttempts, rollovers)
	return meta, nil
}

// Attempts implements Store.
func (s *MemoryStore) Attempts(ctx context.Context, subjectID string, round int) ([]model.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("attempts: %w", err)
	}
	defer observe(time.Now(), metrics.RecordRepositoryQueryLatency)

	var all []model.Attempt
	s.read(subjectID, func(sub *subject) { all = sub.attempts.all() })
	return orderAttempts(all, round), nil
}

// AppendInteractions implements Store.
func (s *MemoryStore) AppendInteractions(ctx context.Context, subjectID string, xs []model.GlobalInteraction) (BucketMeta, error) {
	if err := ctx.Err(); err != nil {
		return BucketMeta{}, fmt.Errorf("append interactions: %w", err)
	}
	defer observe(time.Now(), metrics.RecordRepositoryAppendLatency)

	var (
		meta      BucketMeta
		rollovers int
	)
	s.write(subjectID, func(sub *subject) {
		meta, rollovers = sub.interactions.append(xs, interactionTms, s.opts.capacity[KindInteractions], s.opts.now())
	})
	recordRollovers(KindInteractions, rollovers)
	return meta, nil
}

// Interactions implements Store.
func (s *MemoryStore) Interactions(ctx context.Context, subjectID string) ([]model.GlobalInteraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("interactions: %w", err)
	}
	defer observe(time.Now(), metrics.RecordRepositoryQueryLatency)

	var all []model.GlobalInteraction
	s.read(subjectID, func(sub *subject) { all = sub.interactions.all() })
	return orderInteractions(all), nil
}

// PurgeBefore implements Store. Subjects left without buckets are dropped.
func (s *MemoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, fmt.Errorf("purge: %w", err)
		}
		sh.mu.Lock()
		for id, sub := range sh.subjects {
			removed += sub.samples.purge(cutoff)
			removed += sub.attempts.purge(cutoff)
			removed += sub.interactions.purge(cutoff)
			if sub.empty() {
				delete(sh.subjects, id)
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Subjects implements Store.
func (s *MemoryStore) Subjects(_ context.Context) (int, error) {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.subjects)
		sh.mu.RUnlock()
	}
	return n, nil
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// startMetricsUpdater starts a background goroutine that updates repository metrics.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	total := 0
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.subjects)
		sh.mu.RUnlock()
		metrics.UpdateRepositoryShardSubjects(fmt.Sprintf("shard_%d", i), n)
		total += n
	}
	metrics.UpdateRepositorySubjects(total)
}
