package simulator

import (
	"math/rand/v2"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Subjects = 3
	cfg.Targets = 6
	return cfg
}

func TestGenerate(t *testing.T) {
	Convey("Given a small seeded configuration", t, func() {
		cfg := smallConfig()
		sessions := Generate(cfg)

		Convey("Then one session per subject is produced", func() {
			So(sessions, ShouldHaveLength, 3)
			ids := map[string]bool{}
			for _, s := range sessions {
				ids[s.SubjectID] = true
				So(s.Rounds, ShouldHaveLength, cfg.Rounds)
			}
			So(ids, ShouldHaveLength, 3)
		})

		Convey("Then the same seed reproduces the sessions", func() {
			So(Generate(cfg), ShouldResemble, sessions)
		})

		Convey("Then another seed changes them", func() {
			other := cfg
			other.Seed = 99
			So(Generate(other)[0].SubjectID, ShouldNotEqual, sessions[0].SubjectID)
		})

		Convey("Then each round's tallies match its attempts", func() {
			for _, s := range sessions {
				for _, r := range s.Rounds {
					So(r.Attempts, ShouldHaveLength, cfg.Targets)
					hits, clicked, timeouts := 0, 0, 0
					for _, a := range r.Attempts {
						So(*a.Round, ShouldEqual, r.Number)
						if a.Click.Hit {
							hits++
						}
						if a.Click.Clicked {
							clicked++
							So(*a.Click.Tms, ShouldBeGreaterThanOrEqualTo, *a.SpawnTms)
						} else {
							timeouts++
						}
					}
					So(r.Hits, ShouldEqual, hits)
					So(r.Clicked, ShouldEqual, clicked)
					So(r.Timeouts, ShouldEqual, timeouts)
				}
			}
		})

		Convey("Then samples are valid and ordered in time", func() {
			for _, s := range sessions {
				last := -1.0
				for _, r := range s.Rounds {
					So(r.Samples, ShouldNotBeEmpty)
					for _, smp := range r.Samples {
						So(*smp.Tms, ShouldBeGreaterThanOrEqualTo, last)
						last = *smp.Tms
						So(*smp.X, ShouldBeBetweenOrEqual, 0, 1)
						So(*smp.Y, ShouldBeBetweenOrEqual, 0, 1)
						So(*smp.Round, ShouldEqual, r.Number)
					}
				}
			}
		})

		Convey("Then every clicked attempt has a click interaction", func() {
			for _, s := range sessions {
				clicks := 0
				for _, g := range s.Interactions {
					if g.EventType == "click" {
						clicks++
					}
				}
				want := 0
				for _, r := range s.Rounds {
					want += r.Clicked
				}
				So(clicks, ShouldEqual, want)
				So(s.Interactions[0].EventType, ShouldEqual, "page_view")
			}
		})
	})
}

func TestMinimumJerk(t *testing.T) {
	Convey("Given the minimum-jerk profile", t, func() {
		Convey("Then it starts at 0, ends at 1 and is symmetric", func() {
			So(minJerk(0), ShouldEqual, 0)
			So(minJerk(1), ShouldAlmostEqual, 1, 1e-12)
			So(minJerk(0.5), ShouldAlmostEqual, 0.5, 1e-12)
			So(minJerk(0.25)+minJerk(0.75), ShouldAlmostEqual, 1, 1e-12)
		})
	})

	Convey("Given a trajectory without overshoot", t, func() {
		rng := rand.New(rand.NewPCG(1, 2))
		from, to := point{0.2, 0.2}, point{0.6, 0.4}
		out := trajectory(rng, 1, from, to, 0, 100, 200, 300, false)

		Convey("Then it rests until onset and ends on the target at the finish time", func() {
			So(*out[0].X, ShouldEqual, from.x)
			So(*out[0].Y, ShouldEqual, from.y)
			end := out[len(out)-1]
			So(*end.Tms, ShouldEqual, 300)
			So(*end.X, ShouldEqual, to.x)
			So(*end.Y, ShouldEqual, to.y)
			So(end.IsDown, ShouldBeTrue)
		})
	})
}
