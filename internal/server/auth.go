package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

// apiKeyHeader carries the key for clients that cannot set Authorization.
const apiKeyHeader = "X-API-Key"

// requireAPIKey rejects requests that do not present key, either as
// "Authorization: Bearer <key>" or in the X-API-Key header. An empty key
// disables the check. Presented keys are never logged.
func requireAPIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	want := sha256.Sum256([]byte(key))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		presented, via := credentials(r)
		if presented == "" {
			log.Warn("auth: no credentials", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="studymate"`)
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		got := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			log.Warn("auth: wrong key", slog.String("path", r.URL.Path), slog.String("via", via))
			w.Header().Set("WWW-Authenticate", `Bearer realm="studymate", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// credentials returns the presented key and where it was found. A Bearer
// token takes precedence over X-API-Key.
func credentials(r *http.Request) (key, via string) {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token, "authorization"
		}
	}
	if k := strings.TrimSpace(r.Header.Get(apiKeyHeader)); k != "" {
		return k, "x-api-key"
	}
	return "", ""
}
