package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// AdminKeyHeader carries the shared admin secret.
const AdminKeyHeader = "X-Admin-Key"

var forbiddenBody, _ = json.Marshal(map[string]string{
	"error":   "forbidden",
	"message": "admin access required for sync",
})

// AdminKey rejects requests whose X-Admin-Key does not match key. A blank
// configured key rejects every request.
func AdminKey(key string) func(http.Handler) http.Handler {
	key = strings.TrimSpace(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				observability.LoggerFromContext(r.Context()).Error().
					Str("path", r.URL.Path).
					Msg("ADMIN_SYNC_KEY is empty, refusing sync request; set a non-empty key in production")
				forbid(w)
				return
			}
			provided := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				observability.LoggerFromContext(r.Context()).Warn().Str("path", r.URL.Path).Msg("rejected sync request with missing or wrong admin key")
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forbid(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write(forbiddenBody)
}
