// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/aura/internal/app"
	"github.com/okian/aura/internal/domain/features"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/summary"
	"github.com/okian/aura/internal/domain/types"
)

const defaultMaxBodyBytes = 8 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	AppendSamples(ctx context.Context, subjectID string, round int, in []model.SampleInput) (types.BatchResult, error)
	AppendAttempts(ctx context.Context, subjectID string, in []model.AttemptInput) (types.BatchResult, error)
	AppendInteractions(ctx context.Context, subjectID string, xs []model.GlobalInteraction) (types.BatchResult, error)

	Samples(ctx context.Context, subjectID string, round int) ([]model.PointerSample, error)
	Attempts(ctx context.Context, subjectID string, round int) ([]model.Attempt, error)

	RoundSummary(ctx context.Context, subjectID string, round int) (summary.RoundSummary, error)
	SessionSummary(ctx context.Context, subjectID string) (summary.SessionSummary, error)
	InteractionStats(ctx context.Context, subjectID string) (summary.InteractionStats, error)

	ExtractFeatures(ctx context.Context, in features.Input) (model.Features, error)

	// CheckBatch records a batch key and reports whether it was seen before.
	CheckBatch(ctx context.Context, key string) bool
	// ForgetBatch drops a batch key so a failed batch can be retried.
	ForgetBatch(ctx context.Context, key string)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	ingestHandler  *IngestHandler
	queryHandler   *QueryHandler
	summaryHandler *SummaryHandler
	featureHandler *FeatureHandler
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxBodyBytes int64
}

// WithMaxBodyBytes caps request bodies after decompression.
func WithMaxBodyBytes(n int64) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		ingestHandler:  NewIngestHandler(deps, o.maxBodyBytes),
		queryHandler:   NewQueryHandler(deps),
		summaryHandler: NewSummaryHandler(deps),
		featureHandler: NewFeatureHandler(deps, o.maxBodyBytes),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /v1/subjects/{subjectID}/samples", MetricsMiddleware(s.ingestHandler.HandlePostSamples, "samples"))
	mux.HandleFunc("GET /v1/subjects/{subjectID}/samples", MetricsMiddleware(s.queryHandler.HandleGetSamples, "samples"))
	mux.HandleFunc("POST /v1/subjects/{subjectID}/attempts", MetricsMiddleware(s.ingestHandler.HandlePostAttempts, "attempts"))
	mux.HandleFunc("GET /v1/subjects/{subjectID}/attempts", MetricsMiddleware(s.queryHandler.HandleGetAttempts, "attempts"))
	mux.HandleFunc("POST /v1/subjects/{subjectID}/interactions", MetricsMiddleware(s.ingestHandler.HandlePostInteractions, "interactions"))
	mux.HandleFunc("GET /v1/subjects/{subjectID}/interactions/stats", MetricsMiddleware(s.summaryHandler.HandleInteractionStats, "interaction_stats"))
	mux.HandleFunc("GET /v1/subjects/{subjectID}/summary/rounds/{round}", MetricsMiddleware(s.summaryHandler.HandleRoundSummary, "round_summary"))
	mux.HandleFunc("GET /v1/subjects/{subjectID}/summary", MetricsMiddleware(s.summaryHandler.HandleSessionSummary, "session_summary"))
	mux.HandleFunc("POST /v1/features", MetricsMiddleware(s.featureHandler.HandleExtract, "features"))
}

type errorResponse struct {
	Code     string               `json:"code"`
	Message  string               `json:"message"`
	Rejected []types.RejectedItem `json:"rejected,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service and domain errors to a response.
func writeServiceError(w http.ResponseWriter, err error, rejected []types.RejectedItem) {
	switch {
	case errors.Is(err, service.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "empty_batch", err)
	case errors.Is(err, service.ErrAllRejected):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "all_rejected", Message: err.Error(), Rejected: rejected})
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, features.ErrInvalidWindow),
		errors.Is(err, features.ErrInvalidTarget),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "bad_request", err)
	case errors.Is(err, ErrUnsupportedEncoding):
		writeError(w, http.StatusUnsupportedMediaType, "bad_request", err)
	case errors.Is(err, summary.ErrNoData):
		writeError(w, http.StatusNotFound, "no_data", err)
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "backpressure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
