package middleware

import (
	"net/http"
	"time"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationMiddleware reuses the caller's X-Correlation-ID or mints one,
// echoes it on the response and stores it in the request context.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithCorrelationID(r.Context(), id)))
	})
}

// LoggingMiddleware logs the details of each request and response
func LoggingMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RequestStarted()

			// Create a response writer to capture the status code
			rw := &responseWriter{w, http.StatusOK}

			next.ServeHTTP(rw, r)

			elapsed := time.Since(start)
			m.RequestFinished(r.Method, endpointOf(r), rw.statusCode, elapsed)

			logger.WithContext(r.Context()).WithFields(logrus.Fields{
				"method":        r.Method,
				"url":           r.URL.Path,
				"status_code":   rw.statusCode,
				"response_time": elapsed.Milliseconds(),
				"ip":            r.RemoteAddr,
			}).Info("Request handled")
		})
	}
}

// RecoveryMiddleware turns a panic into a 500 envelope.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.WithContext(r.Context()).WithFields(logrus.Fields{
					"panic":  rec,
					"method": r.Method,
					"url":    r.URL.Path,
				}).Error("Recovered from panic")
				response.ErrorMessage(w, r, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// endpointOf prefers the route template so ids do not explode label
// cardinality.
func endpointOf(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// responseWriter is a wrapper around http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
