package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/finrag/finrag/pkg/httputil"
)

// APIKeyHeader is the header clients authenticate with.
const APIKeyHeader = "X-Api-Key"

// APIKeyConfig holds the set of accepted API keys.
type APIKeyConfig struct {
	// Keys maps an accepted key to a principal name used for logging.
	Keys map[string]string
}

// VerifyAPIKey rejects requests whose X-Api-Key header is missing (401) or
// not among the configured keys (403). The principal associated with an
// accepted key is stored in the request context.
func VerifyAPIKey(config *APIKeyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				httputil.Error(w, http.StatusUnauthorized, "API key missing")
				return
			}

			var principal string
			found := false
			for candidate, name := range config.Keys {
				if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
					principal = name
					found = true
				}
			}
			if !found {
				httputil.Error(w, http.StatusForbidden, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), httputil.APIKeyCtxKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Principal retrieves the authenticated principal name from the context.
func Principal(r *http.Request) (string, bool) {
	name, ok := r.Context().Value(httputil.APIKeyCtxKey).(string)
	return name, ok
}
