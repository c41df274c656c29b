package server

import (
	"net/http"
)

// Middleware wraps an http.Handler and returns a new http.Handler with
// additional behavior, such as request-id tagging or logging.
type Middleware func(http.Handler) http.Handler

// Router registers handlers, applies middleware and serves HTTP.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
