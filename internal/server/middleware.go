package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bistro_http_requests_total",
		Help: "Total HTTP requests by route pattern and status",
	}, []string{"route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bistro_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// requestLogging attaches a request-scoped logger with a request id and
// writes one access log line per request.
func requestLogging(logger zerolog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(logger),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.MethodHandler("method"),
		hlog.URLHandler("url"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			ev := hlog.FromRequest(r).Info()
			if status >= http.StatusInternalServerError {
				ev = hlog.FromRequest(r).Warn()
			}
			ev.Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("Request")
		}),
	}
}

// instrument records request counts and latency per chi route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
