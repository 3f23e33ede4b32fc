package webapp

import (
	"context"
	"net/http"
	"strings"

	"photocal/internal/diary"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFrom returns the session claims put on the context by RequireAuth.
func ClaimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// ownerFrom returns the storage owner of the authenticated user.
func ownerFrom(ctx context.Context) string {
	if c := ClaimsFrom(ctx); c != nil {
		return diary.OwnerKey(c.TelegramID)
	}
	return ""
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(m *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, ErrMissingToken.Error())
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}

			claims, err := m.Validate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}
