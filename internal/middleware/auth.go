package middleware

import (
	"crypto/subtle"
	"net/http"

	"catalogo-sync-api/pkg/apierror"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// LoginKey authorizes operator access. An empty key disables auth
	// (development only).
	LoginKey string
}

// NewAuthMiddleware creates an authentication middleware with injected
// configuration. Read-only routes pass through; everything else requires
// the operator login key in X-Login-Key.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.LoginKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Health and read-only catalog access stay open.
			if r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-Login-Key")
			if key == "" {
				writeError(w, apierror.Unauthorized("X-Login-Key header required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.LoginKey)) != 1 {
				writeError(w, apierror.Unauthorized("Invalid login key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_, _ = w.Write(err.ToJSON())
}
