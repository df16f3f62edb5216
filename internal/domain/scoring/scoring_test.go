package scoring_test

import (
	"context"
	"errors"
	"math"
	"testing"

	scoring "github.com/okian/aura/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func f(v float64) *float64 { return &v }

func TestMotorScorer_Score(t *testing.T) {
	Convey("Given a scorer with default weights", t, func() {
		scorer := scoring.NewMotorScorer()

		Convey("When every metric is missing", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{})

			Convey("Then only the default speed component contributes", func() {
				So(err, ShouldBeNil)
				So(result.HitRate, ShouldEqual, 0.0)
				So(result.Speed, ShouldAlmostEqual, 27.0, 1e-9)
				So(result.Throughput, ShouldEqual, 0.0)
				So(result.Score, ShouldEqual, 27.0)
			})
		})

		Convey("When scoring a typical session", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{
				HitRate:           f(0.75),
				AvgReactionTimeMs: f(300),
				AvgMovementTimeMs: f(400),
				AvgThroughput:     f(4),
			})

			Convey("Then the components follow the weighted formula", func() {
				So(err, ShouldBeNil)
				So(result.HitRate, ShouldAlmostEqual, 30.0, 1e-9)
				So(result.Speed, ShouldAlmostEqual, 27.9, 1e-9)
				So(result.Throughput, ShouldAlmostEqual, 12.0, 1e-9)
				So(result.Score, ShouldEqual, 70.0)
			})
		})

		Convey("When throughput is very high", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{
				HitRate:           f(1),
				AvgReactionTimeMs: f(100),
				AvgMovementTimeMs: f(100),
				AvgThroughput:     f(20),
			})

			Convey("Then the throughput component saturates", func() {
				So(err, ShouldBeNil)
				So(result.Throughput, ShouldEqual, 30.0)
				So(result.Score, ShouldEqual, 99.0)
			})
		})

		Convey("When the pointer is extremely slow", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{
				AvgReactionTimeMs: f(9000),
				AvgMovementTimeMs: f(9000),
			})

			Convey("Then the speed component floors at zero", func() {
				So(err, ShouldBeNil)
				So(result.Speed, ShouldEqual, 0.0)
				So(result.Score, ShouldEqual, 0.0)
			})
		})

		Convey("When metrics are not finite", func() {
			result, err := scorer.Score(context.Background(), scoring.Input{
				HitRate:       f(math.NaN()),
				AvgThroughput: f(math.Inf(1)),
			})

			Convey("Then they are treated as missing", func() {
				So(err, ShouldBeNil)
				So(result.Score, ShouldEqual, 27.0)
			})
		})

		Convey("When context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Convey("Then it should return context error", func() {
				result, err := scorer.Score(ctx, scoring.Input{HitRate: f(1)})
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(result.Score, ShouldEqual, 0.0)
			})
		})
	})
}

func TestMotorScorer_Options(t *testing.T) {
	Convey("Given a scorer with custom weights", t, func() {
		scorer := scoring.NewMotorScorer(scoring.WithWeights(map[string]float64{
			scoring.WeightHitRate: 100,
			scoring.WeightSpeed:   -1,
			"unknown":             5,
		}))

		Convey("When a perfect hit rate is scored", func() {
			result := scorer.Compute(scoring.Input{HitRate: f(1)})

			Convey("Then invalid weights are ignored and the score is capped", func() {
				So(result.HitRate, ShouldEqual, 100.0)
				So(result.Speed, ShouldAlmostEqual, 27.0, 1e-9)
				So(result.Score, ShouldEqual, 100.0)
			})
		})
	})
}

func TestMotorScorer_Deterministic(t *testing.T) {
	Convey("Given a scorer", t, func() {
		scorer := scoring.NewMotorScorer()
		in := scoring.Input{HitRate: f(0.6), AvgReactionTimeMs: f(250), AvgThroughput: f(3.3)}

		Convey("Then repeated scoring yields identical results", func() {
			So(scorer.Compute(in), ShouldResemble, scorer.Compute(in))
		})
	})
}
