package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// RTDNSecretHeader is the header Play's push configuration is set up to send.
const RTDNSecretHeader = "x-rtdn-secret"

// RTDNSecretMiddleware rejects notification pushes whose shared secret header
// does not exactly match the configured value. The check runs before any
// payload parsing. An empty configured secret rejects everything: a missing
// secret must never leave the endpoint open.
func RTDNSecretMiddleware(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Header.Get(RTDNSecretHeader) != secret {
				logger.Warn().Str("path", r.URL.Path).Msg("RTDN shared secret mismatch")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
