package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/aura/internal/domain/model"
)

// QueryHandler serves stored samples and attempts.
type QueryHandler struct {
	deps Dependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps Dependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

type samplesResponse struct {
	SubjectID string                `json:"subjectId"`
	Round     int                   `json:"round,omitempty"`
	Count     int                   `json:"count"`
	Samples   []model.PointerSample `json:"samples"`
}

type attemptsResponse struct {
	SubjectID string          `json:"subjectId"`
	Round     int             `json:"round,omitempty"`
	Count     int             `json:"count"`
	Attempts  []model.Attempt `json:"attempts"`
}

// roundQuery parses the optional ?round= filter; absent means every round.
func roundQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("round")
	if raw == "" {
		return 0, nil
	}
	round, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: round %q is not an integer", ErrBadRequest, raw)
	}
	if err := model.ValidateRound(round); err != nil {
		return 0, err
	}
	return round, nil
}

// HandleGetSamples handles GET /v1/subjects/{subjectID}/samples?round=.
func (h *QueryHandler) HandleGetSamples(w http.ResponseWriter, r *http.Request) {
	round, err := roundQuery(r)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	subjectID := r.PathValue("subjectID")
	samples, err := h.deps.Samples(r.Context(), subjectID, round)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, samplesResponse{SubjectID: subjectID, Round: round, Count: len(samples), Samples: samples})
}

// HandleGetAttempts handles GET /v1/subjects/{subjectID}/attempts?round=.
func (h *QueryHandler) HandleGetAttempts(w http.ResponseWriter, r *http.Request) {
	round, err := roundQuery(r)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	subjectID := r.PathValue("subjectID")
	attempts, err := h.deps.Attempts(r.Context(), subjectID, round)
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, attemptsResponse{SubjectID: subjectID, Round: round, Count: len(attempts), Attempts: attempts})
}
