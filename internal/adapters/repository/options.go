package repository

import "time"

// Default bucket capacities.
const (
	DefaultSampleCapacity      = 5000
	DefaultAttemptCapacity     = 2000
	DefaultInteractionCapacity = 1000

	defaultShardCount            = 8
	defaultMetricsUpdateInterval = 5 * time.Second
)

type options struct {
	capacity              map[Kind]int
	shardCount            int
	metricsUpdateInterval time.Duration
	now                   func() time.Time
}

func defaultOptions() options {
	return options{
		capacity: map[Kind]int{
			KindSamples:      DefaultSampleCapacity,
			KindAttempts:     DefaultAttemptCapacity,
			KindInteractions: DefaultInteractionCapacity,
		},
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithCapacity sets the bucket capacity of one stream kind.
func WithCapacity(kind Kind, n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity[kind] = n
		}
	}
}

// WithShardCount sets the number of lock shards of the memory store.
func WithShardCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shardCount = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithClock sets the time source used for bucket creation times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
