package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// HashKey returns the hex SHA-256 digest stored in admin.keyHashes.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// AdminKey rejects state-changing requests (anything but GET, HEAD and
// OPTIONS) that do not present one of the configured keys. With no hashes
// configured it is a pass-through.
func AdminKey(keyHashes []string) func(http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(keyHashes))
	for _, h := range keyHashes {
		accepted = append(accepted, []byte(strings.ToLower(strings.TrimSpace(h))))
	}
	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			key := extractAdminKey(r)
			if key == "" {
				writeAuthError(w, "missing admin key")
				return
			}
			presented := []byte(HashKey(key))
			for _, h := range accepted {
				if subtle.ConstantTimeCompare(presented, h) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, "invalid admin key")
		})
	}
}

// extractAdminKey reads Authorization: Bearer first, then X-API-Key.
func extractAdminKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}` + "\n"))
}
