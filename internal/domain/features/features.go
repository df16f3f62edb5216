// Package features derives per-attempt motor features from pointer samples:
// timing, spatial accuracy, kinematics and Fitts' law terms.
package features

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/aura/internal/domain/model"
)

// Input is everything the extractor needs for one attempt.
type Input struct {
	Samples      []model.PointerSample
	SpawnTms     float64
	ClickTms     float64
	Target       model.Target
	PrevClickTms *float64
	ClickX       *float64
	ClickY       *float64
}

// Extractor computes the features of a single attempt.
type Extractor interface {
	// Extract is pure: equal inputs yield equal features.
	Extract(ctx context.Context, in Input) (model.Features, error)
}

// WindowExtractor implements Extractor over the samples recorded between
// spawn and click.
type WindowExtractor struct {
	movementThreshold float64
	prominence        float64
}

// NewWindowExtractor creates an extractor with the given options applied.
func NewWindowExtractor(opts ...Option) *WindowExtractor {
	e := &WindowExtractor{
		movementThreshold: DefaultMovementThreshold,
		prominence:        DefaultSubmovementProminence,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes the features for in. Fields without enough data stay nil.
func (e *WindowExtractor) Extract(ctx context.Context, in Input) (model.Features, error) {
	if err := ctx.Err(); err != nil {
		return model.Features{}, fmt.Errorf("extract: %w", err)
	}
	if math.IsNaN(in.ClickTms) || math.IsNaN(in.SpawnTms) || in.ClickTms < in.SpawnTms {
		return model.Features{}, fmt.Errorf("spawn %.1f click %.1f: %w", in.SpawnTms, in.ClickTms, ErrInvalidWindow)
	}
	if r := in.Target.Radius; math.IsNaN(r) || r <= 0 {
		return model.Features{}, fmt.Errorf("radius %v: %w", r, ErrInvalidTarget)
	}

	var f model.Features
	if in.PrevClickTms != nil {
		f.Timing.InterTapMs = ptr(in.ClickTms - *in.PrevClickTms)
	}

	w := window(in.Samples, in.SpawnTms, in.ClickTms)
	if len(w) == 0 {
		return f, nil
	}

	rt := e.reactionTime(w, in.SpawnTms, in.ClickTms)
	mt := math.Max(0, in.ClickTms-(in.SpawnTms+rt))
	f.Timing.ReactionTimeMs = ptr(rt)
	f.Timing.MovementTimeMs = ptr(mt)

	start, center := w[0], point{in.Target.X, in.Target.Y}
	direct := dist(pos(start), center)
	f.Spatial.DirectDistNorm = ptr(direct)
	f.Spatial.ErrorDistNorm = ptr(dist(endPoint(w, in), center) / in.Target.Radius)
	f.Spatial.InitialDirectionDeg = e.initialDirection(w, center)

	if len(w) >= 2 {
		path := pathLength(w)
		f.Spatial.PathLengthNorm = ptr(path)
		f.Spatial.Straightness = ptr(straightness(direct, path))
		f.Kinematics = e.kinematics(w, in.Target)
	}

	width := 2 * in.Target.Radius
	id := math.Log2(direct/width + 1)
	f.Fitts.D = ptr(direct)
	f.Fitts.W = ptr(width)
	f.Fitts.ID = ptr(id)
	if mt > 0 {
		f.Fitts.Throughput = ptr(id / (mt / 1000))
	}

	return f, nil
}

// Degraded reports whether the attempt window of in holds fewer than two
// samples. The returned error wraps ErrDegradedWindow.
func Degraded(in Input) (bool, error) {
	n := len(window(in.Samples, in.SpawnTms, in.ClickTms))
	if n >= 2 {
		return false, nil
	}
	return true, fmt.Errorf("%d samples in window: %w", n, ErrDegradedWindow)
}

// reactionTime is the delay until the pointer first leaves a disc of
// movementThreshold around its starting position.
func (e *WindowExtractor) reactionTime(w []model.PointerSample, spawn, click float64) float64 {
	origin := pos(w[0])
	for _, s := range w[1:] {
		if dist(pos(s), origin) > e.movementThreshold {
			return s.Tms - spawn
		}
	}
	return click - spawn
}

// initialDirection is the unsigned angle between the first movement vector
// and the start-to-target vector.
func (e *WindowExtractor) initialDirection(w []model.PointerSample, center point) *float64 {
	origin := pos(w[0])
	toTarget := center.sub(origin)
	if toTarget.norm() == 0 {
		return nil
	}
	for _, s := range w[1:] {
		move := pos(s).sub(origin)
		if move.norm() <= e.movementThreshold {
			continue
		}
		cos := (move.x*toTarget.x + move.y*toTarget.y) / (move.norm() * toTarget.norm())
		cos = math.Max(-1, math.Min(1, cos))
		return ptr(math.Acos(cos) * 180 / math.Pi)
	}
	return nil
}

func endPoint(w []model.PointerSample, in Input) point {
	if in.ClickX != nil && in.ClickY != nil {
		return point{*in.ClickX, *in.ClickY}
	}
	return pos(w[len(w)-1])
}

func pathLength(w []model.PointerSample) float64 {
	var total float64
	for i := 1; i < len(w); i++ {
		total += dist(pos(w[i-1]), pos(w[i]))
	}
	return total
}

func straightness(direct, path float64) float64 {
	if path == 0 {
		return 1
	}
	return math.Min(1, direct/path)
}

func ptr[T any](v T) *T { return &v }
