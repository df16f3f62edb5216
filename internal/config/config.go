// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Every field carries a koanf tag; the tag is also the YAML key and the
//     lower-cased env suffix (AURA_QUEUE_SIZE -> queue_size).
//   - New(ctx) returns defaults; Load(ctx) layers file and env on top.
//   - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the enrichment job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of feature extraction workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the batch-id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the memory store.
	ShardCount int `koanf:"shard_count"`

	// StorageDriver is "memory" or "sqlite".
	StorageDriver string `koanf:"storage_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// Bucket capacities per stream.
	SampleBucketCapacity      int `koanf:"sample_bucket_capacity"`
	AttemptBucketCapacity     int `koanf:"attempt_bucket_capacity"`
	InteractionBucketCapacity int `koanf:"interaction_bucket_capacity"`

	// Retention is how long a bucket is kept after it was opened.
	Retention time.Duration `koanf:"retention"`

	// RetentionSweepInterval is how often expired buckets are purged.
	RetentionSweepInterval time.Duration `koanf:"retention_sweep_interval"`

	// MovementThreshold is the displacement, in normalized units, that ends the reaction phase.
	MovementThreshold float64 `koanf:"movement_threshold"`

	// SubmovementProminence is the minimum peak prominence as a fraction of peak speed.
	SubmovementProminence float64 `koanf:"submovement_prominence"`

	// MaxBodyBytes caps decoded request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// ScoreWeights maps motor score components (hit_rate, speed, throughput) to their maxima.
	ScoreWeights map[string]float64 `koanf:"score_weights"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		QueueSize:                 10_000,
		WorkerCount:               runtime.NumCPU() * 2,
		DedupeSize:                100_000,
		ShardCount:                8,
		StorageDriver:             DriverMemory,
		SQLitePath:                "aura.db",
		SampleBucketCapacity:      5000,
		AttemptBucketCapacity:     2000,
		InteractionBucketCapacity: 1000,
		Retention:                 365 * 24 * time.Hour,
		RetentionSweepInterval:    time.Hour,
		MovementThreshold:         0.01,
		SubmovementProminence:     0.1,
		MaxBodyBytes:              8 << 20,
		ScoreWeights: map[string]float64{
			"hit_rate":   40,
			"speed":      30,
			"throughput": 30,
		},
	}
}

// Validate checks the values that would otherwise fail deep inside the service.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.SampleBucketCapacity <= 0 || c.AttemptBucketCapacity <= 0 || c.InteractionBucketCapacity <= 0:
		return fmt.Errorf("%w: bucket capacities must be positive", ErrInvalidConfig)
	case c.Retention <= 0:
		return fmt.Errorf("%w: retention must be positive", ErrInvalidConfig)
	case c.MovementThreshold <= 0 || c.MovementThreshold >= 1:
		return fmt.Errorf("%w: movement_threshold must be in (0,1)", ErrInvalidConfig)
	case c.SubmovementProminence < 0 || c.SubmovementProminence >= 1:
		return fmt.Errorf("%w: submovement_prominence must be in [0,1)", ErrInvalidConfig)
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}
	return nil
}
