package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every response with a generated request id so a capture
// attempt can be traced through the logs.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.New().String()
			w.Header().Set(requestIDHeader, id)
			r.Header.Set(requestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs every request hitting the capture endpoint.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger != nil {
				logger.Debug("auth endpoint request",
					"request_id", r.Header.Get(requestIDHeader),
					"method", r.Method,
					"path", r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}
