package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/aura/internal/domain/model"
)

// series is a derivative sampled at pair midpoints.
type series struct {
	t, v []float64
}

func (s series) len() int { return len(s.v) }

// derive differentiates s. Points with equal stamps are skipped.
func (s series) derive() series {
	var out series
	for i := 1; i < s.len(); i++ {
		dt := s.t[i] - s.t[i-1]
		if dt <= 0 {
			continue
		}
		out.t = append(out.t, (s.t[i]+s.t[i-1])/2)
		out.v = append(out.v, (s.v[i]-s.v[i-1])/dt)
	}
	return out
}

// speeds computes the pointer speed for each consecutive pair with a
// positive time step, in normalized units per ms.
func speeds(w []model.PointerSample) series {
	var out series
	for i := 1; i < len(w); i++ {
		dt := w[i].Tms - w[i-1].Tms
		if dt <= 0 {
			continue
		}
		out.t = append(out.t, (w[i].Tms+w[i-1].Tms)/2)
		out.v = append(out.v, dist(pos(w[i-1]), pos(w[i]))/dt)
	}
	return out
}

func (e *WindowExtractor) kinematics(w []model.PointerSample, target model.Target) model.Kinematics {
	k := model.Kinematics{OvershootCount: ptr(overshoots(w, target))}

	speed := speeds(w)
	if speed.len() == 0 {
		return k
	}
	peak := floats.Max(speed.v)
	k.MeanSpeed = ptr(stat.Mean(speed.v, nil))
	k.PeakSpeed = ptr(peak)
	k.SpeedVar = ptr(stat.PopVariance(speed.v, nil))
	k.SubmovementCount = ptr(submovements(speed.v, e.prominence*peak))

	if speed.len() < 2 {
		return k
	}
	accel := speed.derive()
	if accel.len() == 0 {
		return k
	}
	abs := make([]float64, accel.len())
	for i, a := range accel.v {
		abs[i] = math.Abs(a)
	}
	k.MeanAccel = ptr(stat.Mean(abs, nil))
	k.PeakAccel = ptr(floats.Max(abs))

	if accel.len() < 2 {
		return k
	}
	jerk := accel.derive()
	if jerk.len() == 0 {
		return k
	}
	k.JerkRMS = ptr(math.Sqrt(floats.Dot(jerk.v, jerk.v) / float64(jerk.len())))
	return k
}
