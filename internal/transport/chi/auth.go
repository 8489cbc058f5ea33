package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Probes and scraping stay reachable without a key.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/metrics":      true,
}

type keyring [][sha256.Size]byte

func newKeyring(keys []string) keyring {
	var kr keyring
	for _, k := range keys {
		if k != "" {
			kr = append(kr, sha256.Sum256([]byte(k)))
		}
	}
	return kr
}

// contains compares digests so every comparison runs over equal-length input,
// and it always walks the whole ring.
func (kr keyring) contains(token string) bool {
	d := sha256.Sum256([]byte(token))
	match := 0
	for i := range kr {
		match |= subtle.ConstantTimeCompare(kr[i][:], d[:])
	}
	return match == 1
}

// BearerAuthMiddleware requires "Authorization: Bearer <key>" with one of apiKeys.
// With no non-empty keys configured it is a no-op. CORS preflights are let through.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	ring := newKeyring(apiKeys)
	return func(next http.Handler) http.Handler {
		if len(ring) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if msg := ring.reject(r.Header.Get("Authorization")); msg != "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// reject returns the client-facing reason a header is refused, or "".
func (kr keyring) reject(header string) string {
	if header == "" {
		return "missing authorization header"
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "authorization header must use Bearer scheme"
	}
	if !kr.contains(token) {
		return "invalid api key"
	}
	return ""
}
