// Package scoring turns session-level motor metrics into a 0-100 score.
package scoring

import (
	"context"
	"fmt"
	"math"
)

// Weight keys accepted by WithWeights.
const (
	WeightHitRate    = "hit_rate"
	WeightSpeed      = "speed"
	WeightThroughput = "throughput"
)

// Default scoring configuration constants.
const (
	defaultHitWeight        = 40
	defaultSpeedWeight      = 30
	defaultThroughputWeight = 30

	// missingTimeMs stands in for an unknown reaction or movement time.
	missingTimeMs = 500
	// speedSpanMs is the combined time at which the speed component reaches zero.
	speedSpanMs = 10_000
	// saturatingThroughput is the throughput, in bits/s, that earns the full
	// throughput component.
	saturatingThroughput = 10

	maxScoreValue = 100
)

// Option applies a configuration option to the MotorScorer.
type Option func(*MotorScorer)

// WithWeights sets component weights from a configuration map. Unknown keys
// and non-positive values are ignored.
func WithWeights(weights map[string]float64) Option {
	return func(s *MotorScorer) {
		for k, w := range weights {
			if w <= 0 || math.IsNaN(w) {
				continue
			}
			switch k {
			case WeightHitRate:
				s.hitWeight = w
			case WeightSpeed:
				s.speedWeight = w
			case WeightThroughput:
				s.throughputWeight = w
			}
		}
	}
}

// Input holds the session aggregates the score is built from.
type Input struct {
	HitRate           *float64
	AvgReactionTimeMs *float64
	AvgMovementTimeMs *float64
	AvgThroughput     *float64
}

// Result contains the score and its components.
type Result struct {
	Score      float64 `json:"score"`
	HitRate    float64 `json:"hitRateComponent"`
	Speed      float64 `json:"speedComponent"`
	Throughput float64 `json:"throughputComponent"`
}

// Scorer computes a score from an input.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// MotorScorer implements Scorer with a weighted sum of accuracy, speed and
// throughput.
type MotorScorer struct {
	hitWeight        float64
	speedWeight      float64
	throughputWeight float64
}

// NewMotorScorer creates a new scorer with configuration options.
func NewMotorScorer(opts ...Option) *MotorScorer {
	s := &MotorScorer{
		hitWeight:        defaultHitWeight,
		speedWeight:      defaultSpeedWeight,
		throughputWeight: defaultThroughputWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the score for the given input.
func (s *MotorScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("score: %w", err)
	}
	return s.Compute(in), nil
}

// Compute is the context-free form of Score.
func (s *MotorScorer) Compute(in Input) Result {
	hit := orDefault(in.HitRate, 0) * s.hitWeight

	total := orDefault(in.AvgReactionTimeMs, missingTimeMs) + orDefault(in.AvgMovementTimeMs, missingTimeMs)
	speed := math.Max(0, s.speedWeight*(1-total/speedSpanMs))

	tp := math.Min(s.throughputWeight, orDefault(in.AvgThroughput, 0)*s.throughputWeight/saturatingThroughput)
	tp = math.Max(0, tp)

	score := math.Round(hit + speed + tp)
	score = math.Max(0, math.Min(maxScoreValue, score))

	return Result{Score: score, HitRate: hit, Speed: speed, Throughput: tp}
}

// orDefault treats nil, zero and non-finite values as missing.
func orDefault(v *float64, def float64) float64 {
	if v == nil || *v == 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	return *v
}
