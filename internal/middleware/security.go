package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// Security adds security-related headers to all responses
func Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Restrict referrer information
		w.Header().Set("Referrer-Policy", "no-referrer")

		// Content Security Policy for API endpoints
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		// HSTS (only if using HTTPS)
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// CORS lets the browser front end on origins call the API. "*" allows any
// origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"Content-Disposition", "ETag"},
		MaxAge:         600,
	})
	return c.Handler
}
