package api

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireBearerAuth validates the Authorization Bearer token against the
// configured bcrypt hash.
func (s *server) requireBearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		if err := bcrypt.CompareHashAndPassword(
			[]byte(s.cfg.Auth.BearerHash), []byte(token),
		); err != nil {
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid token"})

			return
		}

		next.ServeHTTP(w, r)
	})
}
