package middleware

import (
	"context"
	"net/http"
	"time"

	"breastscan/internal/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the id generated for each request.
const RequestIDHeader = "X-Request-Id"

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID generates a UUID and attaches it to the request context and response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// GetRequestID returns the id attached by RequestID, or "" outside of it.
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// Entry returns a log entry tagged with the request id.
func Entry(r *http.Request, logger *logger.Logger) *logrus.Entry {
	return logger.WithRequest(GetRequestID(r))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// AccessLog logs method, path, status and duration of every request.
// Websocket upgrades get the original writer so they can hijack the connection.
func AccessLog(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				Entry(r, logger).Infof("%s %s upgraded", r.Method, r.URL.Path)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			Entry(r, logger).WithFields(logrus.Fields{
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Infof("%s %s", r.Method, r.URL.Path)
		})
	}
}
