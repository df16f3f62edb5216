package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repository "github.com/okian/aura/internal/adapters/repository"
	service "github.com/okian/aura/internal/app"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func fp(v float64) *float64 { return &v }

func ip(v int) *int { return &v }

func sampleInputs(n int) []model.SampleInput {
	out := make([]model.SampleInput, n)
	for i := range out {
		out[i] = model.SampleInput{Tms: fp(float64(i * 10)), X: fp(0.1), Y: fp(0.2)}
	}
	return out
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithDedupeSize(25_000),
			service.WithShardCount(2),
			service.WithBucketCapacity(repository.KindSamples, 10),
			service.WithRetention(time.Hour, time.Minute),
			service.WithScoreWeights(map[string]float64{"hit_rate": 100}),
		)

		Convey("Then it should report its configuration", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50_000)
			So(stats["dedupeSize"], ShouldEqual, 25_000)
			So(stats["retention"], ShouldEqual, "1h0m0s")
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it is used before Start", func() {
			_, err := svc.AppendSamples(ctx, "s-1", 1, sampleInputs(1))

			Convey("Then data operations fail", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When starting the service", func() {
			err := svc.Start(ctx)
			defer svc.Stop()

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["subjects"], ShouldEqual, 0)
			})
		})

		Convey("When stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Batches(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New()
		ctx := context.Background()
		key := service.BatchKey("s-1", repository.KindAttempts, "b-1")

		Convey("Then batch keys are scoped to subject and stream", func() {
			So(key, ShouldEqual, "s-1/attempts/b-1")
		})

		Convey("When a batch id is checked twice", func() {
			first := svc.CheckBatch(ctx, key)
			second := svc.CheckBatch(ctx, key)

			Convey("Then only the retry is a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a failed batch is forgotten", func() {
			svc.CheckBatch(ctx, key)
			svc.ForgetBatch(ctx, key)

			Convey("Then it can be sent again", func() {
				So(svc.CheckBatch(ctx, key), ShouldBeFalse)
			})
		})
	})
}

func TestService_Retention(t *testing.T) {
	Convey("Given a service with one hour retention", t, func() {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithClock(clock.Now),
			service.WithRetention(time.Hour, 0),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, err := svc.AppendSamples(ctx, "s-1", 1, sampleInputs(3))
		So(err, ShouldBeNil)

		Convey("When the sweep runs inside the retention period", func() {
			clock.Advance(30 * time.Minute)
			n, err := svc.Sweep(ctx)

			Convey("Then nothing is removed", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When the sweep runs after the retention period", func() {
			clock.Advance(2 * time.Hour)
			n, err := svc.Sweep(ctx)

			Convey("Then the expired bucket is removed", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				samples, err := svc.Samples(ctx, "s-1", 0)
				So(err, ShouldBeNil)
				So(samples, ShouldBeEmpty)
			})
		})
	})
}
