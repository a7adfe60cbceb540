// Package middleware provides the HTTP middleware stack of the pooling API.
package middleware

import (
	"net/http"
	"time"

	"github.com/rs/cors"
)

// NewCORSHandler returns a middleware that applies CORS headers for the given
// origins. Each origin must be a full origin (scheme + host, no trailing slash).
// An empty list disables cross-origin access entirely.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Location", "Retry-After"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	})
	return c.Handler
}
