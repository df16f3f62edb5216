// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Rounds of the motor assessment.
const (
	MinRound = 1
	MaxRound = 3
)

// PointerType identifies the input device that produced a sample.
type PointerType string

const (
	PointerMouse   PointerType = "mouse"
	PointerTouch   PointerType = "touch"
	PointerPen     PointerType = "pen"
	PointerUnknown PointerType = "unknown"
)

// ParsePointerType maps the browser's pointerType string onto a known value.
func ParsePointerType(s string) PointerType {
	switch PointerType(strings.ToLower(strings.TrimSpace(s))) {
	case PointerMouse:
		return PointerMouse
	case PointerTouch:
		return PointerTouch
	case PointerPen:
		return PointerPen
	default:
		return PointerUnknown
	}
}

// PointerSample is one downsampled pointer position. Tms is milliseconds
// since the round started; X and Y are normalized to the stage.
type PointerSample struct {
	Round       int         `json:"round"`
	Tms         float64     `json:"tms"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	IsDown      bool        `json:"isDown"`
	PointerType PointerType `json:"pointerType"`
	PointerID   *int        `json:"pointerId,omitempty"`
	Pressure    *float64    `json:"pressure,omitempty"`
}

// SampleInput is the wire shape of a sample. Required members are pointers
// so a missing value can be told apart from zero.
type SampleInput struct {
	Round       *int     `json:"round,omitempty"`
	Tms         *float64 `json:"tms"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	IsDown      bool     `json:"isDown"`
	PointerType string   `json:"pointerType,omitempty"`
	PointerID   *int     `json:"pointerId,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`
}

// Sample validates the input and converts it. defaultRound is used when the
// item carries no round of its own.
func (in SampleInput) Sample(defaultRound int) (PointerSample, error) {
	switch {
	case in.Tms == nil:
		return PointerSample{}, invalid("missing tms")
	case in.X == nil:
		return PointerSample{}, invalid("missing x")
	case in.Y == nil:
		return PointerSample{}, invalid("missing y")
	}

	round := defaultRound
	if in.Round != nil {
		round = *in.Round
	}
	if err := ValidateRound(round); err != nil {
		return PointerSample{}, err
	}
	if !finite(*in.Tms) || *in.Tms < 0 {
		return PointerSample{}, invalid("tms must be a non-negative number")
	}
	if err := unitInterval("x", *in.X); err != nil {
		return PointerSample{}, err
	}
	if err := unitInterval("y", *in.Y); err != nil {
		return PointerSample{}, err
	}
	if in.Pressure != nil {
		if err := unitInterval("pressure", *in.Pressure); err != nil {
			return PointerSample{}, err
		}
	}

	return PointerSample{
		Round:       round,
		Tms:         *in.Tms,
		X:           *in.X,
		Y:           *in.Y,
		IsDown:      in.IsDown,
		PointerType: ParsePointerType(in.PointerType),
		PointerID:   in.PointerID,
		Pressure:    in.Pressure,
	}, nil
}

// ValidateRound reports whether round is one of the assessment rounds.
func ValidateRound(round int) error {
	if round < MinRound || round > MaxRound {
		return invalid(fmt.Sprintf("round %d out of range [%d,%d]", round, MinRound, MaxRound))
	}
	return nil
}

func unitInterval(name string, v float64) error {
	if !finite(v) || v < 0 || v > 1 {
		return invalid(fmt.Sprintf("%s must be within [0,1]", name))
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}
