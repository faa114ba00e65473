// Package api implements the nodeql REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenParam carries the token for clients that cannot set headers. Browsers'
// EventSource is the usual one, so it is only honoured on GET.
const tokenParam = "access_token"

// AuthMiddleware returns middleware that validates a Bearer token. With
// enabled false every request passes through.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if enabled && !authorized(r, want) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nodeql"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authorized(r *http.Request, want []byte) bool {
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok && r.Method == http.MethodGet {
		got = r.URL.Query().Get(tokenParam)
		ok = got != ""
	}
	return ok && subtle.ConstantTimeCompare([]byte(got), want) == 1
}
