package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.samplesIngested.Add(3)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_samples_ingested_total" {
						found = true
						So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 3)
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When registering the same names twice", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording ingestion counters", func() {
			before := testutil.ToFloat64(globalManager.attemptsIngested)
			RecordAttemptsIngested(4)
			RecordSamplesIngested(10)
			RecordInteractionsIngested(2)
			RecordItemsRejected("samples", 1)
			RecordBatchDuplicate("attempts")

			Convey("Then the counters move by the recorded amounts", func() {
				So(testutil.ToFloat64(globalManager.attemptsIngested)-before, ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.itemsRejected.WithLabelValues("samples")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording enrichment outcomes", func() {
			before := testutil.ToFloat64(globalManager.enrichments.WithLabelValues("degraded"))
			RecordEnrichment("degraded")
			RecordEnrichment("ok")
			RecordExtractionLatency(0.4)

			Convey("Then the labelled counter increments", func() {
				So(testutil.ToFloat64(globalManager.enrichments.WithLabelValues("degraded"))-before, ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueCapacity(100)
			UpdateQueueSize(25)
			UpdateQueueUtilization(0.25)
			UpdateWorkerCount(8)
			UpdateRepositorySubjects(3)
			UpdateRepositoryShardSubjects("shard_0", 3)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 25)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 8)
				So(testutil.ToFloat64(globalManager.repositorySubjects), ShouldEqual, 3)
			})
		})

		Convey("When recording the remaining families", func() {
			So(func() {
				RecordBucketRollover("samples")
				RecordRetentionPurged(2)
				RecordRepositoryAppendLatency(1)
				RecordRepositoryQueryLatency(1)
				UpdateRepositoryShardCount(8)
				RecordSummaryLatency("round", 2)
				RecordSummaryNoData()
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueInlineFallback()
				UpdateWorkerBusy(1)
				UpdateWorkerJobsPerSecond(12.5)
				RecordWorkerProcessingLatency(0.2)
				RecordWorkerError()
				RecordHTTPRequest("samples", "POST", "200")
				RecordHTTPRequestDuration("samples", "POST", "200", 3)
				RecordErrorByComponent("queue", "capacity_exceeded")
				RecordErrorByEndpoint("attempts", "POST", "client_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.1)
			}, ShouldNotPanic)
		})

		Convey("When gathering the registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then every metric carries the aura_motor prefix", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "aura_motor_"), ShouldBeTrue)
				}
			})
		})
	})
}
