package summary

import (
	"fmt"

	"github.com/okian/aura/internal/domain/model"
)

// Feature names used as keys of the features map.
const (
	FeatureReactionTime     = "reactionTimeMs"
	FeatureMovementTime     = "movementTimeMs"
	FeatureInterTap         = "interTapMs"
	FeatureDirectDist       = "directDistNorm"
	FeaturePathLength       = "pathLengthNorm"
	FeatureStraightness     = "straightness"
	FeatureErrorDist        = "errorDistNorm"
	FeatureInitialDirection = "initialDirectionDeg"
	FeatureMeanSpeed        = "meanSpeed"
	FeaturePeakSpeed        = "peakSpeed"
	FeatureSpeedVar         = "speedVar"
	FeatureMeanAccel        = "meanAccel"
	FeaturePeakAccel        = "peakAccel"
	FeatureJerkRMS          = "jerkRMS"
	FeatureSubmovements     = "submovementCount"
	FeatureOvershoots       = "overshootCount"
	FeatureFittsD           = "D"
	FeatureFittsW           = "W"
	FeatureFittsID          = "ID"
	FeatureThroughput       = "throughput"
	FeatureEffectiveWidth   = "effectiveWidth"
	FeatureEffectiveID      = "IDe"
)

type feature struct {
	name  string
	value func(*model.Features) (float64, bool)
}

func float(get func(*model.Features) *float64) func(*model.Features) (float64, bool) {
	return func(f *model.Features) (float64, bool) {
		if p := get(f); p != nil {
			return *p, true
		}
		return 0, false
	}
}

func integer(get func(*model.Features) *int) func(*model.Features) (float64, bool) {
	return func(f *model.Features) (float64, bool) {
		if p := get(f); p != nil {
			return float64(*p), true
		}
		return 0, false
	}
}

var catalog = []feature{
	{FeatureReactionTime, float(func(f *model.Features) *float64 { return f.Timing.ReactionTimeMs })},
	{FeatureMovementTime, float(func(f *model.Features) *float64 { return f.Timing.MovementTimeMs })},
	{FeatureInterTap, float(func(f *model.Features) *float64 { return f.Timing.InterTapMs })},
	{FeatureDirectDist, float(func(f *model.Features) *float64 { return f.Spatial.DirectDistNorm })},
	{FeaturePathLength, float(func(f *model.Features) *float64 { return f.Spatial.PathLengthNorm })},
	{FeatureStraightness, float(func(f *model.Features) *float64 { return f.Spatial.Straightness })},
	{FeatureErrorDist, float(func(f *model.Features) *float64 { return f.Spatial.ErrorDistNorm })},
	{FeatureInitialDirection, float(func(f *model.Features) *float64 { return f.Spatial.InitialDirectionDeg })},
	{FeatureMeanSpeed, float(func(f *model.Features) *float64 { return f.Kinematics.MeanSpeed })},
	{FeaturePeakSpeed, float(func(f *model.Features) *float64 { return f.Kinematics.PeakSpeed })},
	{FeatureSpeedVar, float(func(f *model.Features) *float64 { return f.Kinematics.SpeedVar })},
	{FeatureMeanAccel, float(func(f *model.Features) *float64 { return f.Kinematics.MeanAccel })},
	{FeaturePeakAccel, float(func(f *model.Features) *float64 { return f.Kinematics.PeakAccel })},
	{FeatureJerkRMS, float(func(f *model.Features) *float64 { return f.Kinematics.JerkRMS })},
	{FeatureSubmovements, integer(func(f *model.Features) *int { return f.Kinematics.SubmovementCount })},
	{FeatureOvershoots, integer(func(f *model.Features) *int { return f.Kinematics.OvershootCount })},
	{FeatureFittsD, float(func(f *model.Features) *float64 { return f.Fitts.D })},
	{FeatureFittsW, float(func(f *model.Features) *float64 { return f.Fitts.W })},
	{FeatureFittsID, float(func(f *model.Features) *float64 { return f.Fitts.ID })},
	{FeatureThroughput, float(func(f *model.Features) *float64 { return f.Fitts.Throughput })},
	{FeatureEffectiveWidth, float(func(f *model.Features) *float64 { return f.Fitts.EffectiveWidth })},
	{FeatureEffectiveID, float(func(f *model.Features) *float64 { return f.Fitts.IDe })},
}

// deltaMetrics are compared between rounds.
var deltaMetrics = []string{FeatureReactionTime, FeatureMovementTime, FeatureJerkRMS, FeatureThroughput}

const deltaHitRate = "hitRate"

// deltas reports later-minus-earlier differences for every pair of rounds
// present in rounds, keyed like "r2-r1". Metrics missing in either round are
// left out.
func deltas(rounds []RoundSummary) map[string]map[string]float64 {
	out := map[string]map[string]float64{}
	for i := 0; i < len(rounds); i++ {
		for j := i + 1; j < len(rounds); j++ {
			early, late := rounds[i], rounds[j]
			d := map[string]float64{}
			if early.HitRate != nil && late.HitRate != nil {
				d[deltaHitRate] = *late.HitRate - *early.HitRate
			}
			for _, name := range deltaMetrics {
				a, okA := early.Features[name]
				b, okB := late.Features[name]
				if okA && okB {
					d[name] = b.Mean - a.Mean
				}
			}
			out[fmt.Sprintf("r%d-r%d", late.Round, early.Round)] = d
		}
	}
	return out
}
