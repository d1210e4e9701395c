package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds request handling. It delegates to http.TimeoutHandler,
// which buffers the response so an abandoned handler can never interleave
// writes with the 503 body.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":"request timeout"}`)
	}
}
