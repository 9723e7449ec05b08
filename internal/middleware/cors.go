package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

// CORS allows cross-origin requests from origins; "*" allows any origin
func CORS(origins []string) func(http.Handler) http.Handler {
	opts := []handlers.CORSOption{
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", RequestIDHeader}),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
	}
	// credentials cannot be combined with a wildcard origin
	if !containsWildcard(origins) {
		opts = append(opts, handlers.AllowCredentials())
	}
	return handlers.CORS(opts...)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Recovery turns handler panics into 500 responses and logs them
func Recovery(log *logrus.Logger) func(http.Handler) http.Handler {
	return handlers.RecoveryHandler(handlers.RecoveryLogger(log), handlers.PrintRecoveryStack(false))
}
