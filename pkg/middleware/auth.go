package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/logger"
)

// APIKeyHeader is one of the places AdminAuth reads the key from.
const APIKeyHeader = "X-API-Key"

// HashKey returns the SHA-256 hex digest under which a raw key is
// configured.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// AdminAuth guards the state-changing /api/ routes (index refresh, cache
// invalidation). Reads pass through. The key is taken from
// "Authorization: Bearer", then X-API-Key, and must hash to one of
// keyHashes. An empty keyHashes leaves the routes open.
func AdminAuth(keyHashes []string) func(http.Handler) http.Handler {
	hashes := make([][]byte, 0, len(keyHashes))
	for _, h := range keyHashes {
		hashes = append(hashes, []byte(strings.ToLower(h)))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hashes) == 0 || !isAdminRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			key := extractAPIKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			if !keyAccepted(hashes, HashKey(key)) {
				logger.FromContext(r.Context()).Warn("rejected admin request", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isAdminRequest(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func keyAccepted(hashes [][]byte, presented string) bool {
	p := []byte(presented)
	accepted := 0
	for _, h := range hashes {
		accepted |= subtle.ConstantTimeCompare(h, p)
	}
	return accepted == 1
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get(APIKeyHeader)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
