package service

import (
	"time"

	repository "github.com/okian/aura/internal/adapters/repository"
	"github.com/okian/aura/internal/domain/features"
	"github.com/okian/aura/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of extraction workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the enrichment queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many batch ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the shard count of the default memory store.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithBucketCapacity sets the bucket capacity of one stream of the default
// memory store.
func WithBucketCapacity(kind repository.Kind, n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacities[kind] = n
		}
	}
}

// WithStore makes the service use store instead of an in-memory one. The
// caller keeps ownership and closes it after Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRetention sets how long buckets are kept and how often the sweeper
// runs. A zero interval disables the sweeper.
func WithRetention(retention, sweepInterval time.Duration) Option {
	return func(s *Service) {
		if retention > 0 {
			s.retention = retention
		}
		if sweepInterval >= 0 {
			s.sweepInterval = sweepInterval
		}
	}
}

// WithExtractorOptions configures the feature extractor.
func WithExtractorOptions(opts ...features.Option) Option {
	return func(s *Service) {
		s.extractorOpts = append(s.extractorOpts, opts...)
	}
}

// WithScoreWeights sets the motor score component weights.
func WithScoreWeights(weights map[string]float64) Option {
	return func(s *Service) {
		s.scoreWeights = weights
	}
}

// WithClock sets the time source for receivedAt stamps and retention.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
