package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/vareng/annotator/internal/annotation/repository"
	"github.com/vareng/annotator/internal/registry"
	"github.com/vareng/annotator/internal/submission"
)

// Handler holds the dependencies the HTTP surface needs. It contains no
// business logic of its own — every handler is a thin translation between
// JSON and the submission façade.
type Handler struct {
	facade      *submission.Facade
	store       repository.Store
	registry    *registry.Registry
	healthCheck func(ctx context.Context) error
}

// NewHandler creates a new API handler.
func NewHandler(facade *submission.Facade, store repository.Store, reg *registry.Registry, healthCheck func(ctx context.Context) error) *Handler {
	return &Handler{
		facade:      facade,
		store:       store,
		registry:    reg,
		healthCheck: healthCheck,
	}
}

// Submit handles POST /submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	outcome, err := h.facade.Submit(r.Context(), req.Chrom, req.Pos, req.Ref, req.Alt)
	if err != nil {
		switch {
		case errors.Is(err, submission.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, submission.ErrServiceUnavailable):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			log.Printf("submit: unexpected error: %v", err)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	resp := SubmitResponse{State: string(outcome.State), VariantKey: outcome.VariantKey}
	if outcome.Record != nil {
		resp.Record = toRecordResponse(*outcome.Record)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Poll handles GET /poll/{variant_key}.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	variantKey := r.PathValue("variant_key")
	if variantKey == "" {
		respondError(w, http.StatusBadRequest, "variant_key is required")
		return
	}

	result, err := h.facade.Poll(r.Context(), variantKey)
	if err != nil {
		if errors.Is(err, submission.ErrServiceUnavailable) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		log.Printf("poll: unexpected error for %s: %v", variantKey, err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := PollResponse{State: string(result.State), Attempts: result.Attempts}
	if result.Record != nil {
		resp.Record = toRecordResponse(*result.Record)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.healthCheck(r.Context()); err != nil {
		log.Printf("health check failed: %v", err)
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Statistics handles GET /statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.Context())
	if err != nil {
		log.Printf("statistics: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to gather statistics")
		return
	}

	counts := h.registry.CountByState(registry.Queued, registry.Processing, registry.RetryAvailable)
	respondJSON(w, http.StatusOK, toStatisticsResponse(
		stats,
		counts[registry.Queued],
		counts[registry.Processing],
		counts[registry.RetryAvailable],
	))
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
