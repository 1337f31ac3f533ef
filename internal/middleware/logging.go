package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"memories/internal/logger"
	"memories/internal/utils"
)

const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey contextKey = "request_id"
	routeKey     contextKey = "route"
)

// matchedRoute is filled in by RecordRoute once the router has matched.
type matchedRoute struct {
	template string
}

// RequestIDFromContext returns the id assigned by RequestLogger.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestLogger tags every request with an id, logs its outcome and, when
// metrics is non-nil, counts it under the matched route template. Wrapped
// around a mux router it sees requests no route matched; the router then
// needs RecordRoute registered to report templates.
func RequestLogger(log *slog.Logger, metrics *utils.MetricsCollector) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			matched := &matchedRoute{}
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			ctx = context.WithValue(ctx, routeKey, matched)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			route := matched.template
			if route == "" {
				route = routeTemplate(r)
			}
			if metrics != nil {
				metrics.IncrementRequests(route, r.Method, rec.status)
				if rec.status >= http.StatusBadRequest {
					metrics.IncrementErrors(route)
				}
			}

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(ctx, level, "request",
				slog.String("id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.bytes),
				logger.Duration("duration", time.Since(start)),
			)
		})
	}
}

// RecordRoute reports the matched route template to an enclosing
// RequestLogger. Register it with router.Use.
func RecordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if matched, ok := r.Context().Value(routeKey).(*matchedRoute); ok {
			matched.template = routeTemplate(r)
		}
		next.ServeHTTP(w, r)
	})
}

// routeTemplate returns the matched mux path template, or "unmatched".
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
