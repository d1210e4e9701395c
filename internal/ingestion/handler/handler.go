package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quorumsearch/quorumsearch/internal/ingestion"
	"github.com/quorumsearch/quorumsearch/internal/ingestion/validator"
	apperrors "github.com/quorumsearch/quorumsearch/pkg/errors"
	"github.com/quorumsearch/quorumsearch/pkg/logger"
	"github.com/quorumsearch/quorumsearch/pkg/metrics"
)

// Ingestor stores a validated document and hands it to the indexing
// pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
}

type Handler struct {
	publisher Ingestor
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates the ingestion HTTP handler. m may be nil, which disables
// counter updates.
func New(pub Ingestor, m *metrics.Metrics) *Handler {
	return &Handler{
		publisher: pub,
		metrics:   m,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.count("invalid")
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		h.count("invalid")
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		h.count("error")
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	h.count("accepted")
	log.Info("document ingested", "doc_id", resp.DocumentID)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) count(status string) {
	if h.metrics != nil {
		h.metrics.DocsIngestedTotal.WithLabelValues(status).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
