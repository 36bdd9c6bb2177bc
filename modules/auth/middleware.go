package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/oneuni/oneuni-backend/core"
)

type claimsCtxKey struct{}

// ClaimsFromContext returns the verified access claims stored by
// RequireAuth, or nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *AccessClaims {
	claims, _ := ctx.Value(claimsCtxKey{}).(*AccessClaims)
	return claims
}

// UserIDFromContext extracts the authenticated user id from the request
// context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// RequireAuth verifies the access token carried by the request and stores
// its claims in the context. Any failure clears the session cookies before
// responding 401, so a browser with a stale session starts clean.
func RequireAuth(tokens *TokenCodec, transport *Transport) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := transport.AccessToken(r)
			if token == "" {
				transport.ClearSessionCookies(w)
				core.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
				return
			}

			claims, err := tokens.VerifyAccessToken(token)
			if err != nil {
				transport.ClearSessionCookies(w)
				code := "UNAUTHORIZED"
				if errors.Is(err, ErrTokenExpired) {
					code = ErrTokenExpired.Error()
				}
				core.Error(w, r, http.StatusUnauthorized, code, "Invalid or expired authentication token.")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsCtxKey{}, claims)))
		})
	}
}
