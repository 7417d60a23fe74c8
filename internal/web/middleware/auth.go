package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/JonMunkholm/coursedesk/internal/config"
	"github.com/JonMunkholm/coursedesk/internal/logging"
)

// APIKeyAuth checks the X-API-Key header against the configured keys when
// cfg.RequireAPIKey is set. With the requirement on and no keys configured,
// every request is rejected.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				logging.FromContext(r.Context()).Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}
			if !validAPIKey(key, cfg.APIKeys) {
				logging.FromContext(r.Context()).Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validAPIKey compares against every key in constant time.
func validAPIKey(key string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return match == 1
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","message":"` + msg + `","code":"` + code + `"}`))
}
