package simulator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/types"
	"github.com/okian/aura/internal/tracker"
	"github.com/okian/aura/pkg/logger"
)

type samplesBody struct {
	BatchID string              `json:"batchId"`
	Samples []model.SampleInput `json:"samples"`
}

type attemptsBody struct {
	BatchID  string               `json:"batchId"`
	Attempts []model.AttemptInput `json:"attempts"`
}

type interactionsBody struct {
	BatchID      string                    `json:"batchId"`
	Interactions []model.GlobalInteraction `json:"interactions"`
}

// counters are updated by concurrent senders.
type counters struct {
	samples      atomic.Int64
	attempts     atomic.Int64
	interactions atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
}

// Run generates the sessions, sends them, then checks the server's
// summaries against what was generated.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("simulator")

	log.Info(ctx, "starting telemetry simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("subjects", cfg.Subjects),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("targets", cfg.Targets),
		logger.Int64("seed", int64(cfg.Seed)),
		logger.Int("workers", cfg.Workers),
		logger.String("compression", cfg.Compression))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout, cfg.Compression)

	// Step 1: Check service health
	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate sessions
	sessions := Generate(cfg)
	stats.SubjectsGenerated = len(sessions)

	// Step 3: Send sessions concurrently
	var c counters
	sendSessions(ctx, cfg, client, sessions, &c)
	stats.SamplesSent = c.samples.Load()
	stats.AttemptsSent = c.attempts.Load()
	stats.InteractionsSent = c.interactions.Load()
	stats.BatchesFailed = c.failed.Load()
	stats.ItemsDropped = c.dropped.Load()
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("sending sessions: %w", err)
	}

	// Step 4: Verify summaries
	if err := verifySessions(ctx, cfg, client, sessions, stats); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if len(stats.Mismatches) > 0 {
		return stats, fmt.Errorf("%w: %d mismatches", ErrMismatch, len(stats.Mismatches))
	}
	return stats, nil
}

func sendSessions(ctx context.Context, cfg Config, client *HTTPClient, sessions []Session, c *counters) {
	workers := max(1, min(cfg.Workers, len(sessions)))
	ch := make(chan Session, workers*2)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range ch {
				sendSession(ctx, client, s, c)
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, s := range sessions {
			select {
			case <-ctx.Done():
				return
			case ch <- s:
			}
		}
	}()
	wg.Wait()
}

// sendSession ships one subject through three batchers. Samples of a round
// are flushed before its attempts so enrichment sees the whole pointer path.
func sendSession(ctx context.Context, client *HTTPClient, s Session, c *counters) {
	log := logger.Named("simulator").Named(s.SubjectID)
	base := "/v1/subjects/" + s.SubjectID

	samples := tracker.New(ctx, func(ctx context.Context, items []model.SampleInput) error {
		var res types.BatchResult
		if err := client.Post(ctx, base+"/samples", samplesBody{BatchID: uuid.NewString(), Samples: items}, &res); err != nil {
			c.failed.Add(1)
			return err
		}
		c.samples.Add(int64(res.Accepted))
		return nil
	}, tracker.WithName("samples"), tracker.WithBatchSize(tracker.DefaultSampleBatchSize))

	attempts := tracker.New(ctx, func(ctx context.Context, items []model.AttemptInput) error {
		var res types.BatchResult
		if err := client.Post(ctx, base+"/attempts", attemptsBody{BatchID: uuid.NewString(), Attempts: items}, &res); err != nil {
			c.failed.Add(1)
			return err
		}
		c.attempts.Add(int64(res.Accepted))
		return nil
	}, tracker.WithName("attempts"), tracker.WithBatchSize(tracker.DefaultAttemptBatchSize))

	interactions := tracker.New(ctx, func(ctx context.Context, items []model.GlobalInteraction) error {
		var res types.BatchResult
		if err := client.Post(ctx, base+"/interactions", interactionsBody{BatchID: uuid.NewString(), Interactions: items}, &res); err != nil {
			c.failed.Add(1)
			return err
		}
		c.interactions.Add(int64(res.Accepted))
		return nil
	}, tracker.WithName("interactions"), tracker.WithBatchSize(tracker.DefaultInteractionBatchSize))

	for _, r := range s.Rounds {
		for _, smp := range r.Samples {
			_ = samples.Add(ctx, smp)
		}
		if err := samples.Flush(ctx); err != nil {
			log.Warn(ctx, "samples flush failed", logger.Int("round", r.Number), logger.Error(err))
		}
		for _, a := range r.Attempts {
			_ = attempts.Add(ctx, a)
		}
		if err := attempts.Flush(ctx); err != nil {
			log.Warn(ctx, "attempts flush failed", logger.Int("round", r.Number), logger.Error(err))
		}
	}
	for _, g := range s.Interactions {
		_ = interactions.Add(ctx, g)
	}

	for name, closeFn := range map[string]func(context.Context) error{
		"samples":      samples.Close,
		"attempts":     attempts.Close,
		"interactions": interactions.Close,
	} {
		if err := closeFn(ctx); err != nil {
			log.Warn(ctx, "final flush failed", logger.String("stream", name), logger.Error(err))
		}
	}
	c.dropped.Add(samples.Stats().Dropped + attempts.Stats().Dropped + interactions.Stats().Dropped)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.SamplesSent+stats.AttemptsSent+stats.InteractionsSent) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("subjects", stats.SubjectsGenerated),
		logger.Int64("samplesSent", stats.SamplesSent),
		logger.Int64("attemptsSent", stats.AttemptsSent),
		logger.Int64("interactionsSent", stats.InteractionsSent),
		logger.Int64("batchesFailed", stats.BatchesFailed),
		logger.Int64("itemsDropped", stats.ItemsDropped),
		logger.Int("roundsVerified", stats.RoundsVerified),
		logger.Int("mismatches", len(stats.Mismatches)),
		logger.Duration("duration", stats.Duration),
		logger.Float64("itemsPerSecond", perSecond))
}
