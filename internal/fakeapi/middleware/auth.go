package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// BasicToken returns middleware that requires "Authorization: Basic
// <token>" with one of the given tokens. With no tokens configured every
// request passes.
//
// A missing header answers 401; a wrong token answers 403.
func BasicToken(tokens ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(tokens) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Basic ")
			if !ok || token == "" {
				slog.Warn("auth: missing credentials",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, "missing credentials", http.StatusUnauthorized)
				return
			}

			if !isValidToken(token, tokens) {
				slog.Warn("auth: invalid credentials",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, "invalid credentials", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"errorCode":"AUTHORIZATION_ERROR","message":"` + msg + `"}`))
}

// isValidToken compares against every configured token in constant time.
func isValidToken(token string, valid []string) bool {
	match := 0
	for _, v := range valid {
		match |= subtle.ConstantTimeCompare([]byte(token), []byte(v))
	}
	return match == 1
}
