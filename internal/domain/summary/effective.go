package summary

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/aura/internal/domain/model"
)

// effectiveWidthFactor turns the endpoint standard deviation into the width
// holding 96% of a normal endpoint distribution.
const effectiveWidthFactor = 4.133

// withEffectiveWidth returns copies of attempts where every clicked attempt
// carries the effective width of its round and the matching effective index
// of difficulty. Endpoint errors are errorDistNorm scaled back to stage
// units. A round needs two endpoint errors with a non-zero spread.
func withEffectiveWidth(attempts []model.Attempt) []model.Attempt {
	errs := make(map[int][]float64)
	for i := range attempts {
		a := &attempts[i]
		if a.Click.Clicked && a.Spatial.ErrorDistNorm != nil {
			errs[a.Round] = append(errs[a.Round], *a.Spatial.ErrorDistNorm*a.Target.Radius)
		}
	}

	widths := make(map[int]float64, len(errs))
	for round, xs := range errs {
		if len(xs) < 2 {
			continue
		}
		if sd := stat.StdDev(xs, nil); sd > 0 {
			widths[round] = effectiveWidthFactor * sd
		}
	}

	out := make([]model.Attempt, len(attempts))
	copy(out, attempts)
	for i := range out {
		a := &out[i]
		we, ok := widths[a.Round]
		if !ok || !a.Click.Clicked {
			continue
		}
		a.Fitts.EffectiveWidth = &we
		if a.Fitts.D != nil {
			ide := math.Log2(*a.Fitts.D/we + 1)
			a.Fitts.IDe = &ide
		}
	}
	return out
}
