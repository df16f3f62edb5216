package api

import (
	"net/http"

	"github.com/okian/aura/internal/domain/features"
	"github.com/okian/aura/internal/domain/model"
)

// featuresRequest is the wire shape of a stateless extraction.
type featuresRequest struct {
	Samples      []model.PointerSample `json:"samples"`
	SpawnTms     float64               `json:"spawnTms"`
	ClickTms     float64               `json:"clickTms"`
	Target       model.Target          `json:"target"`
	PrevClickTms *float64              `json:"prevClickTms,omitempty"`
	ClickX       *float64              `json:"clickX,omitempty"`
	ClickY       *float64              `json:"clickY,omitempty"`
}

func (f *featuresRequest) input() features.Input {
	return features.Input{
		Samples:      f.Samples,
		SpawnTms:     f.SpawnTms,
		ClickTms:     f.ClickTms,
		Target:       f.Target,
		PrevClickTms: f.PrevClickTms,
		ClickX:       f.ClickX,
		ClickY:       f.ClickY,
	}
}

// FeatureHandler runs the extractor on a posted window.
type FeatureHandler struct {
	deps         Dependencies
	maxBodyBytes int64
}

// NewFeatureHandler creates a new feature handler.
func NewFeatureHandler(deps Dependencies, maxBodyBytes int64) *FeatureHandler {
	return &FeatureHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// HandleExtract handles POST /v1/features.
func (h *FeatureHandler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var req featuresRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &req); err != nil {
		writeServiceError(w, err, nil)
		return
	}
	f, err := h.deps.ExtractFeatures(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
