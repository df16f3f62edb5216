package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/aura/internal/domain/model"
)

// Generator tuning. Times are in milliseconds, positions in unit screen
// coordinates.
const (
	sampleIntervalMs = 16.0
	ttlMs            = 1500.0
	gapMs            = 300.0
	minReactionMs    = 180.0
	maxReactionMs    = 350.0
	minMovementMs    = 250.0
	maxMovementMs    = 650.0
	minRadius        = 0.03
	maxRadius        = 0.06
	hitProbability   = 0.75
	timeoutChance    = 0.08
	overshootChance  = 0.3
	overshootRatio   = 0.08
	pathNoise        = 0.002
	keystrokeChance  = 0.2
	sessionEpochMs   = int64(1_700_000_000_000)
	sessionSpacingMs = int64(10_000_000)
)

var subjectNamespace = uuid.MustParse("6f0c6c3e-34a4-4b0f-9d4e-6a3a8f0b2c11")

// Round is one generated round and what the server should report for it.
type Round struct {
	Number   int
	Samples  []model.SampleInput
	Attempts []model.AttemptInput

	Hits     int
	Clicked  int
	Timeouts int
}

// HitRate is the expected hit rate of the round.
func (r Round) HitRate() float64 {
	if len(r.Attempts) == 0 {
		return 0
	}
	return float64(r.Hits) / float64(len(r.Attempts))
}

// Session is everything one simulated subject sends.
type Session struct {
	SubjectID    string
	Rounds       []Round
	Interactions []model.GlobalInteraction
}

// Generate builds cfg.Subjects sessions. The output depends only on the
// seed and the sizes in cfg.
func Generate(cfg Config) []Session {
	out := make([]Session, cfg.Subjects)
	for i := range out {
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
		out[i] = generateSession(rng, cfg, i)
	}
	return out
}

type point struct{ x, y float64 }

func generateSession(rng *rand.Rand, cfg Config, index int) Session {
	s := Session{
		SubjectID: uuid.NewSHA1(subjectNamespace, fmt.Appendf(nil, "%d/%d", cfg.Seed, index)).String(),
	}
	epoch := sessionEpochMs + int64(index)*sessionSpacingMs
	s.Interactions = append(s.Interactions, model.GlobalInteraction{
		Timestamp: epoch, EventType: "page_view", Module: "game",
	})

	pos := point{0.5, 0.5}
	t := 0.0
	for r := 1; r <= cfg.Rounds; r++ {
		round := Round{Number: r}
		for a := 0; a < cfg.Targets; a++ {
			var next float64
			pos, next = generateAttempt(rng, &round, fmt.Sprintf("r%d-a%d", r, a), pos, t)

			last := round.Attempts[len(round.Attempts)-1]
			if last.Click.Clicked {
				s.Interactions = append(s.Interactions, model.GlobalInteraction{
					Timestamp: epoch + int64(*last.Click.Tms), EventType: "click", Module: "game",
				})
			}
			if rng.Float64() < keystrokeChance {
				s.Interactions = append(s.Interactions, model.GlobalInteraction{
					Timestamp: epoch + int64(next), EventType: "keydown",
				})
			}
			t = next + gapMs
		}
		s.Rounds = append(s.Rounds, round)
	}
	return s
}

// generateAttempt plays one target starting at pos and time spawn. It
// returns where the pointer ended and when the attempt finished.
func generateAttempt(rng *rand.Rand, round *Round, id string, pos point, spawn float64) (point, float64) {
	radius := minRadius + rng.Float64()*(maxRadius-minRadius)
	center := point{0.1 + rng.Float64()*0.8, 0.1 + rng.Float64()*0.8}

	roll := rng.Float64()
	timeout := roll < timeoutChance
	hit := !timeout && rng.Float64() < hitProbability

	reaction := minReactionMs + rng.Float64()*(maxReactionMs-minReactionMs)
	movement := minMovementMs + rng.Float64()*(maxMovementMs-minMovementMs)
	if !timeout && reaction+movement > ttlMs-50 {
		movement = ttlMs - 50 - reaction
	}

	angle := rng.Float64() * 2 * math.Pi
	var end point
	if hit {
		d := rng.Float64() * radius * 0.5
		end = point{center.x + d*math.Cos(angle), center.y + d*math.Sin(angle)}
	} else {
		d := radius * (1.5 + rng.Float64()*1.5)
		end = point{center.x + d*math.Cos(angle), center.y + d*math.Sin(angle)}
	}
	end = clampPoint(end)

	finish := spawn + reaction + movement
	if timeout {
		finish = spawn + ttlMs
	}
	overshoot := rng.Float64() < overshootChance
	round.Samples = append(round.Samples, trajectory(rng, round.Number, pos, end, spawn, spawn+reaction, movement, finish, overshoot)...)

	in := model.AttemptInput{
		Round:     ptr(round.Number),
		AttemptID: id,
		BubbleID:  "bubble-" + id,
		SpawnTms:  ptr(spawn),
		TTLMs:     ptr(ttlMs),
		Target:    &model.TargetInput{X: ptr(center.x), Y: ptr(center.y), Radius: ptr(radius)},
	}
	if timeout {
		in.DespawnTms = ptr(finish)
		in.Click = model.ClickInput{MissType: string(model.MissTimeout)}
		round.Timeouts++
	} else {
		in.DespawnTms = ptr(finish)
		in.Click = model.ClickInput{Clicked: true, Hit: hit, Tms: ptr(finish), X: ptr(end.x), Y: ptr(end.y)}
		if !hit {
			in.Click.MissType = string(model.MissBubble)
		}
		round.Clicked++
		if hit {
			round.Hits++
		}
	}
	round.Attempts = append(round.Attempts, in)

	last := round.Samples[len(round.Samples)-1]
	return point{*last.X, *last.Y}, finish
}

// trajectory samples the pointer from spawn to finish. It rests at from
// until onset, then follows a minimum-jerk path to to over movement ms,
// optionally overshooting and correcting back.
func trajectory(rng *rand.Rand, round int, from, to point, spawn, onset, movement, finish float64, overshoot bool) []model.SampleInput {
	var out []model.SampleInput
	for t := spawn; ; t += sampleIntervalMs {
		if t > finish {
			t = finish
		}
		p := position(rng, from, to, t-onset, movement, overshoot)
		out = append(out, model.SampleInput{
			Round:       ptr(round),
			Tms:         ptr(t),
			X:           ptr(p.x),
			Y:           ptr(p.y),
			IsDown:      t == finish,
			PointerType: string(model.PointerMouse),
		})
		if t == finish {
			return out
		}
	}
}

func position(rng *rand.Rand, from, to point, elapsed, movement float64, overshoot bool) point {
	if elapsed <= 0 {
		return from
	}
	if elapsed >= movement {
		return to
	}
	tau := elapsed / movement
	var p point
	if overshoot {
		past := point{to.x + (to.x-from.x)*overshootRatio, to.y + (to.y-from.y)*overshootRatio}
		const split = 0.8
		if tau < split {
			p = lerp(from, past, minJerk(tau/split))
		} else {
			p = lerp(past, to, minJerk((tau-split)/(1-split)))
		}
	} else {
		p = lerp(from, to, minJerk(tau))
	}
	p.x += rng.NormFloat64() * pathNoise
	p.y += rng.NormFloat64() * pathNoise
	return clampPoint(p)
}

// minJerk is the normalised minimum-jerk position profile.
func minJerk(tau float64) float64 {
	t3 := tau * tau * tau
	return 10*t3 - 15*t3*tau + 6*t3*tau*tau
}

func lerp(a, b point, s float64) point {
	return point{a.x + (b.x-a.x)*s, a.y + (b.y-a.y)*s}
}

func clampPoint(p point) point {
	return point{clamp01(p.x), clamp01(p.y)}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func ptr[T any](v T) *T { return &v }
