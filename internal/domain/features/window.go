package features

import (
	"math"
	"sort"

	"github.com/okian/aura/internal/domain/model"
)

type point struct{ x, y float64 }

func (p point) sub(q point) point { return point{p.x - q.x, p.y - q.y} }

func (p point) norm() float64 { return math.Hypot(p.x, p.y) }

func pos(s model.PointerSample) point { return point{s.X, s.Y} }

func dist(a, b point) float64 { return a.sub(b).norm() }

// window returns the samples with spawn <= tms <= click, ordered by tms.
// Samples sharing a timestamp keep their input order.
func window(samples []model.PointerSample, spawn, click float64) []model.PointerSample {
	out := make([]model.PointerSample, 0, len(samples))
	for _, s := range samples {
		if s.Tms >= spawn && s.Tms <= click {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tms < out[j].Tms })
	return out
}

// overshoots counts inside, outside, inside cycles against the target
// circle. Each re-entry after leaving counts once.
func overshoots(w []model.PointerSample, target model.Target) int {
	center := point{target.X, target.Y}
	var (
		count        int
		wasInside    bool
		leftAfterHit bool
	)
	for _, s := range w {
		inside := dist(pos(s), center) <= target.Radius
		switch {
		case inside && leftAfterHit:
			count++
			leftAfterHit = false
		case !inside && wasInside:
			leftAfterHit = true
		}
		if inside {
			wasInside = true
		}
	}
	return count
}
