package server

import (
	"expvar"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/store"
)

var (
	apiRequestsTotal         = expvar.NewInt("api_requests_total")
	apiRequestsErrorsTotal   = expvar.NewInt("api_requests_errors_total")
	apiRequestLatencyMsTotal = expvar.NewInt("api_request_latency_ms_total")
	apiRequestsByRoute       = expvar.NewMap("api_requests_by_route")
	apiRequestErrorsByRoute  = expvar.NewMap("api_request_errors_by_route")
	wsConnectionsActive      = expvar.NewInt("ws_connections_active")
	wsConnectionsTotal       = expvar.NewInt("ws_connections_total")
	remoteWritesTotal        = expvar.NewInt("remote_writes_total")
	remoteWriteFailures      = expvar.NewInt("remote_write_failures_total")
)

// requestMetrics records volume, error rate and latency per route pattern.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		key := r.Method + " " + requestRoute(r)
		apiRequestsTotal.Add(1)
		apiRequestsByRoute.Add(key, 1)
		if ww.Status() >= http.StatusBadRequest {
			apiRequestsErrorsTotal.Add(1)
			apiRequestErrorsByRoute.Add(key, 1)
		}
		apiRequestLatencyMsTotal.Add(time.Since(start).Milliseconds())
	})
}

func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// requestLogger logs one line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("route", requestRoute(r)),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// trackRemote counts the outcome of a background remote write.
func trackRemote(res store.Result) {
	if res.Remote == nil {
		return
	}
	go func() {
		err, ok := <-res.Remote
		if !ok {
			return
		}
		remoteWritesTotal.Add(1)
		if err != nil {
			remoteWriteFailures.Add(1)
		}
	}()
}
