package middleware

import (
	"app/internal/logger"
	"net/http"
)

// LoggerMiddleware logs incoming HTTP requests.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logger.New()
		logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")

		next.ServeHTTP(w, r)
	})
}
