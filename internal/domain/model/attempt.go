package model

import (
	"strings"
	"time"
)

// MissType classifies how an attempt ended.
type MissType string

const (
	MissHit     MissType = "hit"
	MissBubble  MissType = "bubble_miss"
	MissStage   MissType = "stage_miss"
	MissTimeout MissType = "timeout"
	MissUnknown MissType = "unknown"

	missTypeUnset MissType = ""
)

const maxTargetRadius = 1.0

// ParseMissType maps a client string onto a known MissType.
func ParseMissType(s string) MissType {
	switch m := MissType(strings.ToLower(strings.TrimSpace(s))); m {
	case MissHit, MissBubble, MissStage, MissTimeout, MissUnknown:
		return m
	default:
		return missTypeUnset
	}
}

// Target is the acquisition goal in normalized stage coordinates.
type Target struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Click records how the attempt was finalized.
type Click struct {
	Clicked  bool     `json:"clicked"`
	Hit      bool     `json:"hit"`
	MissType MissType `json:"missType"`
	Tms      *float64 `json:"tms"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

// Attempt is one target-acquisition trial, enriched with derived features
// when it is persisted. Stored attempts are never mutated.
type Attempt struct {
	Round      int      `json:"round"`
	AttemptID  string   `json:"attemptId"`
	BubbleID   string   `json:"bubbleId,omitempty"`
	SpawnTms   float64  `json:"spawnTms"`
	DespawnTms *float64 `json:"despawnTms"`
	TTLMs      *float64 `json:"ttlMs,omitempty"`
	Target     Target   `json:"target"`
	Click      Click    `json:"click"`

	Features
	Enrichment Enrichment `json:"enrichment"`
	ReceivedAt time.Time  `json:"receivedAt"`
}

// ClickTms returns the click time of a clicked attempt.
func (a *Attempt) ClickTms() (float64, bool) {
	if !a.Click.Clicked || a.Click.Tms == nil {
		return 0, false
	}
	return *a.Click.Tms, true
}

// TargetInput is the wire shape of Target.
type TargetInput struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Radius *float64 `json:"radius"`
}

// ClickInput is the wire shape of Click.
type ClickInput struct {
	Clicked  bool     `json:"clicked"`
	Hit      bool     `json:"hit"`
	MissType string   `json:"missType,omitempty"`
	Tms      *float64 `json:"tms,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
}

// AttemptInput is the wire shape of an attempt as sent by the client.
type AttemptInput struct {
	Round      *int         `json:"round"`
	AttemptID  string       `json:"attemptId"`
	BubbleID   string       `json:"bubbleId,omitempty"`
	SpawnTms   *float64     `json:"spawnTms"`
	DespawnTms *float64     `json:"despawnTms,omitempty"`
	TTLMs      *float64     `json:"ttlMs,omitempty"`
	Target     *TargetInput `json:"target"`
	Click      ClickInput   `json:"click"`
}

// Attempt validates the input and converts it. Derived fields are left empty.
func (in AttemptInput) Attempt() (Attempt, error) {
	if strings.TrimSpace(in.AttemptID) == "" {
		return Attempt{}, invalid("missing attemptId")
	}
	if in.Round == nil {
		return Attempt{}, invalid("missing round")
	}
	if err := ValidateRound(*in.Round); err != nil {
		return Attempt{}, err
	}
	if in.SpawnTms == nil {
		return Attempt{}, invalid("missing spawnTms")
	}
	spawn := *in.SpawnTms
	if !finite(spawn) || spawn < 0 {
		return Attempt{}, invalid("spawnTms must be a non-negative number")
	}
	if in.DespawnTms != nil && (!finite(*in.DespawnTms) || *in.DespawnTms < spawn) {
		return Attempt{}, invalid("despawnTms must not precede spawnTms")
	}

	target, err := in.Target.target()
	if err != nil {
		return Attempt{}, err
	}
	click, err := in.Click.click(spawn)
	if err != nil {
		return Attempt{}, err
	}

	return Attempt{
		Round:      *in.Round,
		AttemptID:  in.AttemptID,
		BubbleID:   in.BubbleID,
		SpawnTms:   spawn,
		DespawnTms: in.DespawnTms,
		TTLMs:      in.TTLMs,
		Target:     target,
		Click:      click,
	}, nil
}

func (t *TargetInput) target() (Target, error) {
	switch {
	case t == nil:
		return Target{}, invalid("missing target")
	case t.X == nil:
		return Target{}, invalid("missing target.x")
	case t.Y == nil:
		return Target{}, invalid("missing target.y")
	case t.Radius == nil:
		return Target{}, invalid("missing target.radius")
	}
	if err := unitInterval("target.x", *t.X); err != nil {
		return Target{}, err
	}
	if err := unitInterval("target.y", *t.Y); err != nil {
		return Target{}, err
	}
	if r := *t.Radius; !finite(r) || r <= 0 || r > maxTargetRadius {
		return Target{}, invalid("target.radius must be within (0,1]")
	}
	return Target{X: *t.X, Y: *t.Y, Radius: *t.Radius}, nil
}

func (c ClickInput) click(spawn float64) (Click, error) {
	if c.Hit && !c.Clicked {
		return Click{}, invalid("hit attempt must be clicked")
	}
	if c.Clicked {
		if c.Tms == nil {
			return Click{}, invalid("clicked attempt missing click.tms")
		}
		if !finite(*c.Tms) || *c.Tms < spawn {
			return Click{}, invalid("click.tms precedes spawnTms")
		}
	}
	if c.X != nil {
		if err := unitInterval("click.x", *c.X); err != nil {
			return Click{}, err
		}
	}
	if c.Y != nil {
		if err := unitInterval("click.y", *c.Y); err != nil {
			return Click{}, err
		}
	}

	miss := ParseMissType(c.MissType)
	switch {
	case c.Hit:
		miss = MissHit
	case miss == MissHit:
		return Click{}, invalid("missType hit on a missed attempt")
	case miss == missTypeUnset && !c.Clicked:
		miss = MissTimeout
	case miss == missTypeUnset:
		miss = MissUnknown
	}

	return Click{
		Clicked:  c.Clicked,
		Hit:      c.Hit,
		MissType: miss,
		Tms:      c.Tms,
		X:        c.X,
		Y:        c.Y,
	}, nil
}
