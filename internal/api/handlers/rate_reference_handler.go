package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/ratebenchmark/internal/application/services"
	"github.com/zatekoja/ratebenchmark/internal/domain/entities"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/ratebenchmark/pkg/errors"
)

const maxRequestBodyBytes = 1 << 20

// RateLookupService defines the handler dependency for rate lookups.
type RateLookupService interface {
	Lookup(ctx context.Context, codes []string, region string) entities.LookupResult
}

// FetchStatsSource exposes coordinator counters.
type FetchStatsSource interface {
	Stats() services.FetchStats
}

// RateReferenceHandler handles rate reference requests
type RateReferenceHandler struct {
	service RateLookupService
	stats   FetchStatsSource
}

// NewRateReferenceHandler creates a new rate reference handler. stats may be nil.
func NewRateReferenceHandler(service RateLookupService, stats FetchStatsSource) *RateReferenceHandler {
	return &RateReferenceHandler{
		service: service,
		stats:   stats,
	}
}

type rateReferenceRequest struct {
	Codes  []string `json:"codes"`
	Region string   `json:"region"`
	Format string   `json:"format"`
}

type rateReferenceResponse struct {
	Rates     []entities.AggregatedRate `json:"rates"`
	Count     int                       `json:"count"`
	Reference string                    `json:"reference,omitempty"`
}

// GetRateReferences handles GET /api/rate-references
func (h *RateReferenceHandler) GetRateReferences(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("codes") {
		respondWithError(w, http.StatusBadRequest, "codes parameter is required")
		return
	}

	req := rateReferenceRequest{
		Codes:  splitCodes(query["codes"]),
		Region: query.Get("region"),
		Format: query.Get("format"),
	}
	h.respond(w, r, req)
}

// PostRateReferences handles POST /api/rate-references
func (h *RateReferenceHandler) PostRateReferences(w http.ResponseWriter, r *http.Request) {
	var req rateReferenceRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Codes == nil {
		respondWithError(w, http.StatusBadRequest, "codes field is required")
		return
	}
	if req.Format == "" {
		req.Format = r.URL.Query().Get("format")
	}
	h.respond(w, r, req)
}

// GetFetchStats handles GET /api/rate-references/stats
func (h *RateReferenceHandler) GetFetchStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondWithAppError(w, apperrors.NewNotFoundError("fetch statistics are not available"))
		return
	}
	respondWithJSON(w, http.StatusOK, h.stats.Stats())
}

func (h *RateReferenceHandler) respond(w http.ResponseWriter, r *http.Request, req rateReferenceRequest) {
	switch req.Format {
	case "", "json", "text":
	default:
		respondWithError(w, http.StatusBadRequest, "format must be json or text")
		return
	}

	result := h.service.Lookup(r.Context(), req.Codes, req.Region)

	observability.LoggerFromContext(r.Context()).Debug().
		Int("requested", len(req.Codes)).
		Int("resolved", result.Len()).
		Str("region", req.Region).
		Msg("rate reference lookup served")

	resp := rateReferenceResponse{
		Rates: result.Rates(),
		Count: result.Len(),
	}
	if req.Format == "text" {
		resp.Reference, _ = services.FormatRateReference(result)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// splitCodes accepts both repeated and comma separated codes parameters.
func splitCodes(values []string) []string {
	codes := make([]string, 0, len(values))
	for _, value := range values {
		for _, code := range strings.Split(value, ",") {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
	}
	return codes
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

func respondWithAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrorTypeExternal, apperrors.ErrorTypeMalformed:
		status = http.StatusBadGateway
	}
	respondWithError(w, status, err.Error())
}
