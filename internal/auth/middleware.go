package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

type contextKey struct{}

var identityKey contextKey

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// RequireAuth guards a route with the access-token verification
// contract: Bearer header present, signature and expiry valid, token
// type correct, and not revoked.
func RequireAuth(service *Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeMessage(w, http.StatusUnauthorized, "No token provided.")
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "Malformed token.")
			return
		}

		identity, err := service.VerifyAccess(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenRevoked):
				writeMessage(w, http.StatusUnauthorized, "Token revoked.")
			case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidAccessToken):
				writeMessage(w, http.StatusUnauthorized, "Invalid or expired token.")
			default:
				sentry.CaptureException(err)
				writeMessage(w, http.StatusInternalServerError, "Internal Server Error.")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}
