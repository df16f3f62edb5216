package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/aura/internal/domain/summary"
	"github.com/okian/aura/pkg/logger"
)

// ErrMismatch is returned when the server's summaries disagree with the
// generated sessions.
var ErrMismatch = errors.New("summaries do not match generated data")

const hitRateTolerance = 1e-9

// verifySessions compares every round summary, the session summary and the
// interaction stats of each subject with what was generated.
func verifySessions(ctx context.Context, cfg Config, client *HTTPClient, sessions []Session, stats *Stats) error {
	log := logger.Named("simulator")
	for _, s := range sessions {
		base := "/v1/subjects/" + s.SubjectID
		for _, r := range s.Rounds {
			var got summary.RoundSummary
			if err := client.Get(ctx, fmt.Sprintf("%s/summary/rounds/%d", base, r.Number), &got); err != nil {
				return fmt.Errorf("round %d of %s: %w", r.Number, s.SubjectID, err)
			}
			stats.Mismatches = append(stats.Mismatches, compareRound(s.SubjectID, r, got)...)
			stats.RoundsVerified++
			if cfg.Verbose {
				log.Info(ctx, "round verified",
					logger.String("subject", s.SubjectID),
					logger.Int("round", r.Number),
					logger.Int("attempts", got.NAttempts),
					logger.Int("hits", got.NHits))
			}
		}

		var session summary.SessionSummary
		if err := client.Get(ctx, base+"/summary", &session); err != nil {
			return fmt.Errorf("session of %s: %w", s.SubjectID, err)
		}
		if session.RoundsCompleted != len(s.Rounds) {
			stats.Mismatches = append(stats.Mismatches, fmt.Sprintf("%s: roundsCompleted %d, want %d",
				s.SubjectID, session.RoundsCompleted, len(s.Rounds)))
		}
		if session.Score == nil {
			stats.Mismatches = append(stats.Mismatches, fmt.Sprintf("%s: session has no score", s.SubjectID))
		}

		var interactions summary.InteractionStats
		if err := client.Get(ctx, base+"/interactions/stats", &interactions); err != nil {
			return fmt.Errorf("interactions of %s: %w", s.SubjectID, err)
		}
		if interactions.TotalInteractions != len(s.Interactions) {
			stats.Mismatches = append(stats.Mismatches, fmt.Sprintf("%s: totalInteractions %d, want %d",
				s.SubjectID, interactions.TotalInteractions, len(s.Interactions)))
		}
	}

	for _, m := range stats.Mismatches {
		log.Warn(ctx, "mismatch", logger.String("detail", m))
	}
	return nil
}

func compareRound(subjectID string, want Round, got summary.RoundSummary) []string {
	var out []string
	check := func(field string, g, w int) {
		if g != w {
			out = append(out, fmt.Sprintf("%s round %d: %s %d, want %d", subjectID, want.Number, field, g, w))
		}
	}
	check("nAttempts", got.NAttempts, len(want.Attempts))
	check("nHits", got.NHits, want.Hits)
	check("nClicked", got.NClicked, want.Clicked)
	check("nTimeouts", got.NTimeouts, want.Timeouts)

	switch {
	case got.HitRate == nil:
		out = append(out, fmt.Sprintf("%s round %d: missing hitRate", subjectID, want.Number))
	case math.Abs(*got.HitRate-want.HitRate()) > hitRateTolerance:
		out = append(out, fmt.Sprintf("%s round %d: hitRate %.4f, want %.4f", subjectID, want.Number, *got.HitRate, want.HitRate()))
	}
	return out
}
