package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Verifier resolves a bearer token to its subject.
type Verifier interface {
	Verify(token string) (string, error)
}

type contextKey string

// SubjectKey is the context key for the authenticated username.
const SubjectKey = contextKey("subject")

// CredentialsErrorMessage is returned for every rejected token.
const CredentialsErrorMessage = "Could not validate credentials"

// Middleware rejects requests without a valid bearer token. Missing,
// malformed, and expired tokens all get the same 403 response.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := BearerToken(r)
			if !ok {
				deny(w)
				return
			}

			subject, err := v.Verify(tokenStr)
			if err != nil {
				log.Debug().Str("path", r.URL.Path).Msg("Rejected bearer token")
				deny(w)
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// SubjectFromContext returns the username stored by Middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(SubjectKey).(string)
	return s, ok
}

func deny(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"detail": CredentialsErrorMessage})
}
