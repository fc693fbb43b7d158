package api

import (
	"crypto/subtle"
	"net/http"
)

const authRealm = `Basic realm="VicDash"`

// BasicAuth gates requests on a single shared password. Any username is
// accepted. An empty password lets everything through.
func BasicAuth(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, got, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", authRealm)
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
