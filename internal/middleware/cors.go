package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// preflightMaxAge is how long, in seconds, browsers may cache a preflight answer.
const preflightMaxAge = 600

// NewCORSHandler returns a middleware that lets the listed origins call the
// run trigger and the attendance lookups from a browser. Origins are trimmed
// and lose any trailing slash. With no usable origin the middleware is a
// pass-through and no CORS header is ever written.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := normalizeOrigins(allowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         preflightMaxAge,
	})
	return c.Handler
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
