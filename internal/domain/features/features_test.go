package features_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/aura/internal/domain/features"
	"github.com/okian/aura/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sample(t, x, y float64) model.PointerSample {
	return model.PointerSample{Round: 1, Tms: t, X: x, Y: y, PointerType: model.PointerMouse}
}

func f(v float64) *float64 { return &v }

// trail builds samples along the x axis, one every 10ms, with the given steps.
func trail(steps ...float64) []model.PointerSample {
	x := 0.1
	out := []model.PointerSample{sample(0, x, 0.2)}
	for i, s := range steps {
		x += s
		out = append(out, sample(float64(i+1)*10, x, 0.2))
	}
	return out
}

func TestExtractTwoLegReach(t *testing.T) {
	Convey("Given three samples moving to the target in two legs", t, func() {
		ex := features.NewWindowExtractor()
		in := features.Input{
			Samples:  []model.PointerSample{sample(0, 0.1, 0.1), sample(100, 0.5, 0.1), sample(200, 0.5, 0.5)},
			SpawnTms: 0,
			ClickTms: 200,
			Target:   model.Target{X: 0.5, Y: 0.5, Radius: 0.05},
		}

		Convey("When features are extracted", func() {
			ft, err := ex.Extract(context.Background(), in)
			So(err, ShouldBeNil)

			Convey("Then spatial features follow the path geometry", func() {
				So(*ft.Spatial.DirectDistNorm, ShouldAlmostEqual, math.Sqrt(0.32), 1e-9)
				So(*ft.Spatial.PathLengthNorm, ShouldAlmostEqual, 0.8, 1e-9)
				So(*ft.Spatial.Straightness, ShouldAlmostEqual, 0.7071, 1e-4)
				So(*ft.Spatial.ErrorDistNorm, ShouldAlmostEqual, 0, 1e-9)
				So(*ft.Spatial.InitialDirectionDeg, ShouldAlmostEqual, 45, 1e-9)
			})

			Convey("Then timing splits at movement onset", func() {
				So(*ft.Timing.ReactionTimeMs, ShouldEqual, 100.0)
				So(*ft.Timing.MovementTimeMs, ShouldEqual, 100.0)
				So(ft.Timing.InterTapMs, ShouldBeNil)
			})

			Convey("Then kinematics use the pair speeds", func() {
				So(*ft.Kinematics.MeanSpeed, ShouldAlmostEqual, 0.004, 1e-12)
				So(*ft.Kinematics.PeakSpeed, ShouldAlmostEqual, 0.004, 1e-12)
				So(*ft.Kinematics.SpeedVar, ShouldAlmostEqual, 0, 1e-12)
				So(*ft.Kinematics.MeanAccel, ShouldAlmostEqual, 0, 1e-12)
				So(ft.Kinematics.JerkRMS, ShouldBeNil)
				So(*ft.Kinematics.SubmovementCount, ShouldEqual, 1)
				So(*ft.Kinematics.OvershootCount, ShouldEqual, 0)
			})

			Convey("Then Fitts terms use the direct distance and target width", func() {
				id := math.Log2(math.Sqrt(0.32)/0.1 + 1)
				So(*ft.Fitts.W, ShouldAlmostEqual, 0.1, 1e-12)
				So(*ft.Fitts.ID, ShouldAlmostEqual, id, 1e-9)
				So(*ft.Fitts.Throughput, ShouldAlmostEqual, id/0.1, 1e-9)
			})
		})
	})
}

func TestExtractEmptyWindow(t *testing.T) {
	Convey("Given no samples between spawn and click", t, func() {
		ex := features.NewWindowExtractor()
		in := features.Input{
			Samples:      []model.PointerSample{sample(10, 0.1, 0.1), sample(900, 0.4, 0.4)},
			SpawnTms:     100,
			ClickTms:     500,
			Target:       model.Target{X: 0.5, Y: 0.5, Radius: 0.05},
			PrevClickTms: f(40),
		}

		Convey("When features are extracted", func() {
			ft, err := ex.Extract(context.Background(), in)

			Convey("Then every window-derived field is nil", func() {
				So(err, ShouldBeNil)
				So(ft.HasWindowData(), ShouldBeFalse)
				So(ft.Timing.ReactionTimeMs, ShouldBeNil)
				So(ft.Fitts.Throughput, ShouldBeNil)
			})

			Convey("Then the inter-tap interval is still reported", func() {
				So(*ft.Timing.InterTapMs, ShouldEqual, 460.0)
			})
		})

		Convey("Then the window is reported as degraded", func() {
			degraded, err := features.Degraded(in)
			So(degraded, ShouldBeTrue)
			So(errors.Is(err, features.ErrDegradedWindow), ShouldBeTrue)
		})
	})
}

func TestExtractEdgeCases(t *testing.T) {
	target := model.Target{X: 0.5, Y: 0.5, Radius: 0.05}
	ex := features.NewWindowExtractor()

	Convey("Given a pointer that never moves", t, func() {
		in := features.Input{
			Samples:  []model.PointerSample{sample(0, 0.2, 0.2), sample(50, 0.2, 0.2)},
			ClickTms: 50,
			Target:   target,
		}
		ft, err := ex.Extract(context.Background(), in)
		So(err, ShouldBeNil)

		Convey("Then straightness is exactly one", func() {
			So(*ft.Spatial.PathLengthNorm, ShouldEqual, 0.0)
			So(*ft.Spatial.Straightness, ShouldEqual, 1.0)
		})

		Convey("Then movement time is zero and throughput is absent", func() {
			So(*ft.Timing.ReactionTimeMs, ShouldEqual, 50.0)
			So(*ft.Timing.MovementTimeMs, ShouldEqual, 0.0)
			So(ft.Fitts.Throughput, ShouldBeNil)
			So(ft.Fitts.ID, ShouldNotBeNil)
		})

		Convey("Then there is no initial direction and no submovement", func() {
			So(ft.Spatial.InitialDirectionDeg, ShouldBeNil)
			So(*ft.Kinematics.SubmovementCount, ShouldEqual, 0)
		})
	})

	Convey("Given a single sample in the window", t, func() {
		in := features.Input{
			Samples:  []model.PointerSample{sample(20, 0.3, 0.5)},
			ClickTms: 100,
			Target:   target,
			ClickX:   f(0.5),
			ClickY:   f(0.52),
		}
		ft, err := ex.Extract(context.Background(), in)
		So(err, ShouldBeNil)

		Convey("Then path and kinematics are absent", func() {
			So(ft.Spatial.PathLengthNorm, ShouldBeNil)
			So(ft.Spatial.Straightness, ShouldBeNil)
			So(ft.Kinematics.MeanSpeed, ShouldBeNil)
			So(ft.Kinematics.OvershootCount, ShouldBeNil)
		})

		Convey("Then timing and Fitts distance terms are still derived", func() {
			So(ft.Timing.ReactionTimeMs, ShouldNotBeNil)
			So(*ft.Timing.MovementTimeMs, ShouldEqual, 0.0)
			So(*ft.Spatial.DirectDistNorm, ShouldAlmostEqual, 0.2, 1e-9)
			So(*ft.Fitts.D, ShouldAlmostEqual, 0.2, 1e-9)
			So(ft.Fitts.ID, ShouldNotBeNil)
			So(ft.Fitts.Throughput, ShouldBeNil)
		})

		Convey("Then the error distance uses the click position in radii", func() {
			So(*ft.Spatial.ErrorDistNorm, ShouldAlmostEqual, 0.4, 1e-9)
		})

		Convey("Then the window is degraded", func() {
			degraded, _ := features.Degraded(in)
			So(degraded, ShouldBeTrue)
		})
	})

	Convey("Given samples out of order with a shared timestamp", t, func() {
		in := features.Input{
			Samples:  []model.PointerSample{sample(20, 0.5, 0.5), sample(0, 0.2, 0.5), sample(0, 0.3, 0.5)},
			ClickTms: 20,
			Target:   target,
		}
		ft, err := ex.Extract(context.Background(), in)
		So(err, ShouldBeNil)

		Convey("Then the tie contributes path length but no speed", func() {
			So(*ft.Spatial.PathLengthNorm, ShouldAlmostEqual, 0.3, 1e-9)
			So(*ft.Kinematics.PeakSpeed, ShouldAlmostEqual, 0.01, 1e-9)
			So(*ft.Kinematics.MeanSpeed, ShouldAlmostEqual, 0.01, 1e-9)
			So(ft.Kinematics.MeanAccel, ShouldBeNil)
		})
	})

	Convey("Given a click before the spawn", t, func() {
		_, err := ex.Extract(context.Background(), features.Input{SpawnTms: 100, ClickTms: 50, Target: target})

		Convey("Then the window is invalid", func() {
			So(errors.Is(err, features.ErrInvalidWindow), ShouldBeTrue)
		})
	})

	Convey("Given a zero radius", t, func() {
		_, err := ex.Extract(context.Background(), features.Input{ClickTms: 50, Target: model.Target{X: 0.5, Y: 0.5}})

		Convey("Then the target is invalid", func() {
			So(errors.Is(err, features.ErrInvalidTarget), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ex.Extract(ctx, features.Input{ClickTms: 50, Target: target})

		Convey("Then extraction stops", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestStraightnessRange(t *testing.T) {
	Convey("Given zig-zag paths of growing length", t, func() {
		ex := features.NewWindowExtractor()
		target := model.Target{X: 0.9, Y: 0.5, Radius: 0.05}

		for n := 2; n <= 12; n++ {
			samples := make([]model.PointerSample, 0, n)
			for k := 0; k < n; k++ {
				y := 0.5
				if k%2 == 1 {
					y = 0.6
				}
				samples = append(samples, sample(float64(k*15), 0.1+float64(k)*0.05, y))
			}
			ft, err := ex.Extract(context.Background(), features.Input{
				Samples: samples, ClickTms: float64(n * 15), Target: target,
			})
			So(err, ShouldBeNil)
			So(*ft.Spatial.Straightness, ShouldBeGreaterThan, 0)
			So(*ft.Spatial.Straightness, ShouldBeLessThanOrEqualTo, 1)
		}
	})

	Convey("Given a path that leaves the target centre and returns to it", t, func() {
		ex := features.NewWindowExtractor()
		ft, err := ex.Extract(context.Background(), features.Input{
			Samples:  []model.PointerSample{sample(0, 0.5, 0.5), sample(20, 0.6, 0.5), sample(40, 0.5, 0.5)},
			ClickTms: 40,
			Target:   model.Target{X: 0.5, Y: 0.5, Radius: 0.05},
		})
		So(err, ShouldBeNil)

		Convey("Then a zero direct distance over a moving path gives straightness zero", func() {
			So(*ft.Spatial.DirectDistNorm, ShouldEqual, 0.0)
			So(*ft.Spatial.PathLengthNorm, ShouldAlmostEqual, 0.2, 1e-9)
			So(*ft.Spatial.Straightness, ShouldEqual, 0.0)
		})
	})
}

func TestSubmovements(t *testing.T) {
	ex := features.NewWindowExtractor()
	target := model.Target{X: 0.9, Y: 0.9, Radius: 0.01}

	count := func(samples []model.PointerSample) int {
		ft, err := ex.Extract(context.Background(), features.Input{
			Samples: samples, ClickTms: samples[len(samples)-1].Tms, Target: target,
		})
		So(err, ShouldBeNil)
		return *ft.Kinematics.SubmovementCount
	}

	Convey("Given a speed profile with two distinct bumps", t, func() {
		Convey("Then two submovements are found", func() {
			So(count(trail(0.01, 0.03, 0.01, 0.03, 0.01)), ShouldEqual, 2)
		})
	})

	Convey("Given a shallow ripple on one bump", t, func() {
		Convey("Then the ripple is below the prominence floor", func() {
			So(count(trail(0.01, 0.03, 0.029, 0.031, 0.01)), ShouldEqual, 1)
		})
	})

	Convey("Given a flat-topped profile", t, func() {
		Convey("Then the plateau counts once", func() {
			So(count(trail(0.02, 0.02, 0.02)), ShouldEqual, 1)
		})
	})

	Convey("Given a strict prominence ratio", t, func() {
		strict := features.NewWindowExtractor(features.WithSubmovementProminence(0.9))
		samples := trail(0.01, 0.03, 0.01, 0.02, 0.01)
		ft, err := strict.Extract(context.Background(), features.Input{
			Samples: samples, ClickTms: samples[len(samples)-1].Tms, Target: target,
		})
		So(err, ShouldBeNil)

		Convey("Then only the dominant peak survives", func() {
			So(*ft.Kinematics.SubmovementCount, ShouldEqual, 1)
		})
	})
}

func TestOvershoot(t *testing.T) {
	Convey("Given a pointer that enters the target, leaves and re-enters twice", t, func() {
		ex := features.NewWindowExtractor()
		samples := []model.PointerSample{
			sample(0, 0.3, 0.5),
			sample(10, 0.5, 0.5),
			sample(20, 0.6, 0.5),
			sample(30, 0.5, 0.5),
			sample(40, 0.62, 0.5),
			sample(50, 0.51, 0.5),
		}
		ft, err := ex.Extract(context.Background(), features.Input{
			Samples: samples, ClickTms: 50, Target: model.Target{X: 0.5, Y: 0.5, Radius: 0.05},
		})

		Convey("Then two overshoots are counted", func() {
			So(err, ShouldBeNil)
			So(*ft.Kinematics.OvershootCount, ShouldEqual, 2)
		})

		Convey("Then jerk is available on a long enough profile", func() {
			So(ft.Kinematics.JerkRMS, ShouldNotBeNil)
			So(*ft.Kinematics.PeakAccel, ShouldBeGreaterThanOrEqualTo, *ft.Kinematics.MeanAccel)
		})
	})
}

func TestMovementThresholdOption(t *testing.T) {
	Convey("Given a coarse movement threshold", t, func() {
		ex := features.NewWindowExtractor(features.WithMovementThreshold(0.05))
		samples := []model.PointerSample{sample(0, 0.1, 0.5), sample(50, 0.13, 0.5), sample(100, 0.3, 0.5)}
		ft, err := ex.Extract(context.Background(), features.Input{
			Samples: samples, ClickTms: 150, Target: model.Target{X: 0.5, Y: 0.5, Radius: 0.05},
		})

		Convey("Then small jitter does not count as onset", func() {
			So(err, ShouldBeNil)
			So(*ft.Timing.ReactionTimeMs, ShouldEqual, 100.0)
			So(*ft.Timing.MovementTimeMs, ShouldEqual, 50.0)
		})
	})
}
