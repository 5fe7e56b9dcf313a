package routes

import (
	"net/http"

	"github.com/zatekoja/ratebenchmark/internal/api/handlers"
	"github.com/zatekoja/ratebenchmark/internal/api/middleware"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	rateReferenceHandler *handlers.RateReferenceHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	rateReferenceHandler *handlers.RateReferenceHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                  http.NewServeMux(),
		rateReferenceHandler: rateReferenceHandler,
		allowedOrigins:       allowedOrigins,
		metrics:              metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", handlers.Health)

	// Rate reference endpoints
	r.mux.HandleFunc("GET /api/rate-references", r.rateReferenceHandler.GetRateReferences)
	r.mux.HandleFunc("POST /api/rate-references", r.rateReferenceHandler.PostRateReferences)
	r.mux.HandleFunc("GET /api/rate-references/stats", r.rateReferenceHandler.GetFetchStats)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics, middleware.MuxRoutes(r.mux))(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on 304s
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
