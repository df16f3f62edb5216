package model

import "strings"

// GlobalInteraction is one page-level event captured by the extension:
// clicks, keystrokes, scrolls, zoom and the like. Data carries the
// event-specific payload (target, position, key, url, ...).
type GlobalInteraction struct {
	Timestamp int64          `json:"timestamp"` // unix ms
	EventType string         `json:"eventType"`
	Module    string         `json:"module,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Validate checks the required members.
func (g *GlobalInteraction) Validate() error {
	if strings.TrimSpace(g.EventType) == "" {
		return invalid("missing eventType")
	}
	if g.Timestamp < 0 {
		return invalid("timestamp must not be negative")
	}
	return nil
}
