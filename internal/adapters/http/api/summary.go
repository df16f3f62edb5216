package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// SummaryHandler serves round, session and interaction summaries.
type SummaryHandler struct {
	deps Dependencies
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(deps Dependencies) *SummaryHandler {
	return &SummaryHandler{deps: deps}
}

// HandleRoundSummary handles GET /v1/subjects/{subjectID}/summary/rounds/{round}.
func (h *SummaryHandler) HandleRoundSummary(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("round")
	round, err := strconv.Atoi(raw)
	if err != nil {
		writeServiceError(w, fmt.Errorf("%w: round %q is not an integer", ErrBadRequest, raw), nil)
		return
	}
	rs, err := h.deps.RoundSummary(r.Context(), r.PathValue("subjectID"), round)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// HandleSessionSummary handles GET /v1/subjects/{subjectID}/summary.
func (h *SummaryHandler) HandleSessionSummary(w http.ResponseWriter, r *http.Request) {
	ss, err := h.deps.SessionSummary(r.Context(), r.PathValue("subjectID"))
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

// HandleInteractionStats handles GET /v1/subjects/{subjectID}/interactions/stats.
func (h *SummaryHandler) HandleInteractionStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.InteractionStats(r.Context(), r.PathValue("subjectID"))
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
