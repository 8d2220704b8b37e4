package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/safespace/safespace/internal/accounts"
)

type contextKey string

const identityKey contextKey = "identity"

// BearerAuth verifies the Authorization header and stores the actor identity
// in the request context.
func BearerAuth(tokens *accounts.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			id, err := tokens.Verify(auth[len(prefix):])
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// identityFrom returns the authenticated actor placed by BearerAuth.
func identityFrom(ctx context.Context) accounts.Identity {
	id, _ := ctx.Value(identityKey).(accounts.Identity)
	return id
}

// requireProfessional resolves the caller's verified professional profile,
// writing a 403 and returning false when the capability is absent.
func requireProfessional(w http.ResponseWriter, r *http.Request, deps AppDeps) (string, bool) {
	id := identityFrom(r.Context())
	p, ok, err := deps.Accounts.IsProfessional(id.UserID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to resolve professional profile: %v", err)
		return "", false
	}
	if !ok || !p.Verified {
		httpError(w, http.StatusForbidden, "forbidden", "only verified professionals can access this endpoint")
		return "", false
	}
	return p.ID, true
}
