// Package summary aggregates enriched attempts into round and session
// summaries and global interactions into usage statistics.
package summary

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/scoring"
)

// FeatureStats describes the distribution of one feature.
type FeatureStats struct {
	N      int      `json:"n"`
	Mean   float64  `json:"mean"`
	Std    float64  `json:"std"`
	Median float64  `json:"median"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	CV     *float64 `json:"cv"`
}

// Counts are the outcome tallies shared by round and session summaries.
type Counts struct {
	NAttempts int      `json:"nAttempts"`
	NHits     int      `json:"nHits"`
	NMisses   int      `json:"nMisses"`
	NClicked  int      `json:"nClicked"`
	NTimeouts int      `json:"nTimeouts"`
	HitRate   *float64 `json:"hitRate"`
}

// RoundSummary aggregates one round of one subject.
type RoundSummary struct {
	SubjectID string `json:"subjectId"`
	Round     int    `json:"round"`
	Counts
	Features map[string]FeatureStats `json:"features"`
}

// SessionSummary aggregates every round of one subject.
type SessionSummary struct {
	SubjectID string `json:"subjectId"`
	Counts
	Features              map[string]FeatureStats       `json:"features"`
	Rounds                []RoundSummary                `json:"rounds"`
	RoundsCompleted       int                           `json:"roundsCompleted"`
	Consistency           *float64                      `json:"consistency"`
	ThroughputConsistency *float64                      `json:"throughputConsistency"`
	Deltas                map[string]map[string]float64 `json:"deltas"`
	Score                 *scoring.Result               `json:"score"`
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithScorer sets the scorer used for the session score.
func WithScorer(s *scoring.MotorScorer) Option {
	return func(sm *Summarizer) {
		if s != nil {
			sm.scorer = s
		}
	}
}

// Summarizer computes summaries. It holds no per-subject state.
type Summarizer struct {
	scorer *scoring.MotorScorer
}

// New creates a Summarizer.
func New(opts ...Option) *Summarizer {
	s := &Summarizer{scorer: scoring.NewMotorScorer()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Round summarizes the attempts of one round. Attempts from other rounds
// are ignored. It returns ErrNoData when the round has no attempts.
func (s *Summarizer) Round(subjectID string, round int, attempts []model.Attempt) (RoundSummary, error) {
	var in []model.Attempt
	for _, a := range attempts {
		if a.Round == round {
			in = append(in, a)
		}
	}
	if len(in) == 0 {
		return RoundSummary{}, fmt.Errorf("subject %s round %d: %w", subjectID, round, ErrNoData)
	}
	in = withEffectiveWidth(in)
	return RoundSummary{
		SubjectID: subjectID,
		Round:     round,
		Counts:    count(in),
		Features:  featureStats(in),
	}, nil
}

// Session summarizes all attempts of a subject. It never fails: without
// attempts the summary has zero counts and empty maps.
func (s *Summarizer) Session(subjectID string, attempts []model.Attempt) SessionSummary {
	attempts = withEffectiveWidth(attempts)
	out := SessionSummary{
		SubjectID: subjectID,
		Counts:    count(attempts),
		Features:  featureStats(attempts),
		Rounds:    []RoundSummary{},
		Deltas:    map[string]map[string]float64{},
	}
	if len(attempts) == 0 {
		return out
	}

	for r := model.MinRound; r <= model.MaxRound; r++ {
		rs, err := s.Round(subjectID, r, attempts)
		if err != nil {
			continue
		}
		out.Rounds = append(out.Rounds, rs)
	}
	out.RoundsCompleted = len(out.Rounds)

	var hitRates, throughputs []float64
	for _, rs := range out.Rounds {
		hitRates = append(hitRates, *rs.HitRate)
		if tp, ok := rs.Features[FeatureThroughput]; ok {
			throughputs = append(throughputs, tp.Mean)
		}
	}
	out.Consistency = cv(hitRates)
	out.ThroughputConsistency = cv(throughputs)
	out.Deltas = deltas(out.Rounds)

	score := s.scorer.Compute(scoring.Input{
		HitRate:           out.HitRate,
		AvgReactionTimeMs: mean(out.Features, FeatureReactionTime),
		AvgMovementTimeMs: mean(out.Features, FeatureMovementTime),
		AvgThroughput:     mean(out.Features, FeatureThroughput),
	})
	out.Score = &score
	return out
}

func count(attempts []model.Attempt) Counts {
	var c Counts
	c.NAttempts = len(attempts)
	for i := range attempts {
		a := &attempts[i]
		if a.Click.Hit {
			c.NHits++
		}
		if a.Click.Clicked {
			c.NClicked++
		}
		if a.Click.MissType == model.MissTimeout {
			c.NTimeouts++
		}
	}
	c.NMisses = c.NAttempts - c.NHits
	if c.NAttempts > 0 {
		rate := float64(c.NHits) / float64(c.NAttempts)
		c.HitRate = &rate
	}
	return c
}

// featureStats builds the per-feature distribution over clicked attempts.
// Nil feature values are skipped.
func featureStats(attempts []model.Attempt) map[string]FeatureStats {
	values := make(map[string][]float64)
	for i := range attempts {
		a := &attempts[i]
		if !a.Click.Clicked {
			continue
		}
		for _, fe := range catalog {
			if v, ok := fe.value(&a.Features); ok {
				values[fe.name] = append(values[fe.name], v)
			}
		}
	}

	out := make(map[string]FeatureStats, len(values))
	for name, xs := range values {
		out[name] = describe(xs)
	}
	return out
}

func describe(xs []float64) FeatureStats {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	st := FeatureStats{
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: median(sorted),
		Min:    sorted[0],
		Max:    floats.Max(sorted),
	}
	if st.N > 1 {
		st.Std = stat.StdDev(sorted, nil)
	}
	if st.Mean != 0 {
		v := st.Std / st.Mean
		st.CV = &v
	}
	return st
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// cv is the coefficient of variation across rounds. It needs at least two
// values and a non-zero mean.
func cv(xs []float64) *float64 {
	if len(xs) < 2 {
		return nil
	}
	m, sd := stat.MeanStdDev(xs, nil)
	if m == 0 || math.IsNaN(sd) {
		return nil
	}
	v := sd / m
	return &v
}

func mean(features map[string]FeatureStats, name string) *float64 {
	st, ok := features[name]
	if !ok {
		return nil
	}
	m := st.Mean
	return &m
}
