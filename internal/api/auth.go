package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// bearerToken returns the credential of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// AuthMiddleware guards the /v1 routes with a static bearer token. A
// missing credential answers 401 and a wrong one 403.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r)
			switch {
			case !ok:
				w.Header().Set("WWW-Authenticate", `Bearer realm="llmgateway"`)
				writeError(w, http.StatusUnauthorized, "authentication required")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				writeError(w, http.StatusForbidden, "invalid token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
