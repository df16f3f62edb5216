package api

import (
	"context"
	"net/http"
	"strings"

	repository "github.com/okian/aura/internal/adapters/repository"
	service "github.com/okian/aura/internal/app"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/types"
	"github.com/okian/aura/pkg/metrics"
)

type samplesRequest struct {
	BatchID string              `json:"batchId,omitempty"`
	Round   *int                `json:"round,omitempty"`
	Samples []model.SampleInput `json:"samples"`
}

type attemptsRequest struct {
	BatchID  string               `json:"batchId,omitempty"`
	Attempts []model.AttemptInput `json:"attempts"`
}

type interactionsRequest struct {
	BatchID      string                    `json:"batchId,omitempty"`
	Interactions []model.GlobalInteraction `json:"interactions"`
}

// IngestHandler handles the batch append endpoints.
type IngestHandler struct {
	deps         Dependencies
	maxBodyBytes int64
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps Dependencies, maxBodyBytes int64) *IngestHandler {
	return &IngestHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// HandlePostSamples handles POST /v1/subjects/{subjectID}/samples.
func (h *IngestHandler) HandlePostSamples(w http.ResponseWriter, r *http.Request) {
	var req samplesRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &req); err != nil {
		writeServiceError(w, err, nil)
		return
	}
	round := 0
	if req.Round != nil {
		round = *req.Round
	}
	h.ingest(w, r, repository.KindSamples, req.BatchID, func(ctx context.Context, subjectID string) (types.BatchResult, error) {
		return h.deps.AppendSamples(ctx, subjectID, round, req.Samples)
	})
}

// HandlePostAttempts handles POST /v1/subjects/{subjectID}/attempts.
func (h *IngestHandler) HandlePostAttempts(w http.ResponseWriter, r *http.Request) {
	var req attemptsRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &req); err != nil {
		writeServiceError(w, err, nil)
		return
	}
	h.ingest(w, r, repository.KindAttempts, req.BatchID, func(ctx context.Context, subjectID string) (types.BatchResult, error) {
		return h.deps.AppendAttempts(ctx, subjectID, req.Attempts)
	})
}

// HandlePostInteractions handles POST /v1/subjects/{subjectID}/interactions.
func (h *IngestHandler) HandlePostInteractions(w http.ResponseWriter, r *http.Request) {
	var req interactionsRequest
	if err := decodeBody(w, r, h.maxBodyBytes, &req); err != nil {
		writeServiceError(w, err, nil)
		return
	}
	h.ingest(w, r, repository.KindInteractions, req.BatchID, func(ctx context.Context, subjectID string) (types.BatchResult, error) {
		return h.deps.AppendInteractions(ctx, subjectID, req.Interactions)
	})
}

// ingest runs one append behind the batch-id idempotency check. A batch
// that fails is forgotten so the client can retry it.
func (h *IngestHandler) ingest(w http.ResponseWriter, r *http.Request, kind repository.Kind, batchID string,
	appendFn func(ctx context.Context, subjectID string) (types.BatchResult, error),
) {
	ctx := r.Context()
	subjectID := r.PathValue("subjectID")

	var key string
	if batchID = strings.TrimSpace(batchID); batchID != "" {
		key = service.BatchKey(subjectID, kind, batchID)
		if h.deps.CheckBatch(ctx, key) {
			metrics.RecordBatchDuplicate(string(kind))
			writeJSON(w, http.StatusOK, types.BatchResult{Rejected: []types.RejectedItem{}, Duplicate: true})
			return
		}
	}

	res, err := appendFn(ctx, subjectID)
	if err != nil {
		if key != "" {
			h.deps.ForgetBatch(ctx, key)
		}
		writeServiceError(w, err, res.Rejected)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
