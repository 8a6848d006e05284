package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSMiddleware returns CORS configuration for desktop and intranet clients
func CORSMiddleware() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		// Department workstations come from the internal network,
		// restrict per deployment via a reverse proxy if needed
		AllowedOrigins: []string{"*"},

		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},

		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Requested-With",
		},

		ExposedHeaders: []string{
			"X-Request-Id",
		},

		AllowCredentials: false,

		// Cache preflight requests for 5 minutes
		MaxAge: 300,
	})
}
