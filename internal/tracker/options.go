package tracker

import (
	"time"

	"github.com/okian/aura/pkg/logger"
)

// Batch sizes used by the game client for each stream.
const (
	DefaultSampleBatchSize      = 100
	DefaultAttemptBatchSize     = 10
	DefaultInteractionBatchSize = 50
	DefaultFlushInterval        = 2 * time.Second
	DefaultMaxBuffered          = 10000
)

// Option configures a Batcher.
type Option func(*options)

type options struct {
	name          string
	batchSize     int
	flushInterval time.Duration
	maxBuffered   int
	logger        logger.Logger
}

func defaultOptions() options {
	return options{
		name:          "batcher",
		batchSize:     DefaultSampleBatchSize,
		flushInterval: DefaultFlushInterval,
		maxBuffered:   DefaultMaxBuffered,
	}
}

// WithName sets the name used in logs.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithBatchSize sets how many buffered items trigger a flush.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval sets the background flush period. Zero disables the
// ticker; the buffer is then only flushed by size or Close.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.flushInterval = d
		}
	}
}

// WithMaxBuffered bounds the buffer. Oldest items are dropped beyond it.
func WithMaxBuffered(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBuffered = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
