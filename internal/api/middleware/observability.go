package middleware

import (
	"net/http"
	"time"

	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// UnmatchedRoute is the route label for requests no pattern serves.
const UnmatchedRoute = "unmatched"

// RouteResolver returns the registered pattern serving r, or "" if none does.
type RouteResolver func(r *http.Request) string

// MuxRoutes resolves requests against the patterns registered on mux.
func MuxRoutes(mux *http.ServeMux) RouteResolver {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}
}

// ObservabilityMiddleware opens a span per request and records request
// metrics, both labelled by route pattern so raw paths never become labels.
func ObservabilityMiddleware(metrics *observability.Metrics, routes RouteResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r, routes)

			ctx, span := observability.StartSpan(r.Context(), route)
			defer span.End()
			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.user_agent", r.UserAgent()),
			)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(ctx))

			observability.RecordRequestMetric(ctx, metrics, r.Method, route, sw.status, time.Since(start))
			observability.SetSpanAttributes(span, attribute.Int("http.status_code", sw.status))
		})
	}
}

func routeLabel(r *http.Request, routes RouteResolver) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	if routes != nil {
		if pattern := routes(r); pattern != "" {
			return pattern
		}
	}
	return UnmatchedRoute
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
