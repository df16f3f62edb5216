package summary

import (
	"strings"

	"github.com/okian/aura/internal/domain/model"
)

// InteractionStats tallies a subject's global interactions by category.
type InteractionStats struct {
	SubjectID         string         `json:"subjectId"`
	TotalInteractions int            `json:"totalInteractions"`
	Clicks            int            `json:"clicks"`
	DoubleClicks      int            `json:"doubleClicks"`
	RightClicks       int            `json:"rightClicks"`
	Keystrokes        int            `json:"keystrokes"`
	MouseMovements    int            `json:"mouseMovements"`
	MouseHovers       int            `json:"mouseHovers"`
	PageViews         int            `json:"pageViews"`
	DragAndDrop       int            `json:"dragAndDrop"`
	TouchEvents       int            `json:"touchEvents"`
	ZoomEvents        int            `json:"zoomEvents"`
	Other             int            `json:"other"`
	ByEventType       map[string]int `json:"byEventType"`
	ByModule          map[string]int `json:"byModule"`
	FirstTimestamp    *int64         `json:"firstTimestamp"`
	LastTimestamp     *int64         `json:"lastTimestamp"`
}

// Interactions computes usage statistics. It never fails; an empty input
// yields zero counts.
func (s *Summarizer) Interactions(subjectID string, xs []model.GlobalInteraction) InteractionStats {
	st := InteractionStats{
		SubjectID:         subjectID,
		TotalInteractions: len(xs),
		ByEventType:       map[string]int{},
		ByModule:          map[string]int{},
	}
	for i := range xs {
		g := &xs[i]
		kind := strings.ToLower(strings.TrimSpace(g.EventType))
		st.ByEventType[kind]++
		if g.Module != "" {
			st.ByModule[g.Module]++
		}
		st.tally(kind)

		ts := g.Timestamp
		if st.FirstTimestamp == nil || ts < *st.FirstTimestamp {
			st.FirstTimestamp = &ts
		}
		if st.LastTimestamp == nil || ts > *st.LastTimestamp {
			last := ts
			st.LastTimestamp = &last
		}
	}
	return st
}

func (st *InteractionStats) tally(kind string) {
	switch kind {
	case "click":
		st.Clicks++
	case "double_click":
		st.DoubleClicks++
	case "right_click":
		st.RightClicks++
	case "keypress", "keydown":
		st.Keystrokes++
	case "mouse_move", "scroll":
		st.MouseMovements++
	case "mouse_enter", "mouse_leave":
		st.MouseHovers++
	case "page_view":
		st.PageViews++
	case "drag_start", "drag_end", "drop":
		st.DragAndDrop++
	case "touch_start", "touch_move", "touch_end", "swipe", "pinch":
		st.TouchEvents++
	case "browser_zoom", "wheel_zoom", "keyboard_zoom", "visual_viewport_zoom":
		st.ZoomEvents++
	default:
		st.Other++
	}
}
