package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerline/payroll-compliance-backend/internal/domain/errors"
)

type contextKey string

const claimsKey contextKey = "claims"

// Claims is the JWT payload. Every token is scoped to one company; handlers
// derive their tenant path prefix from it, never from the request body.
type Claims struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ClaimsFromContext returns the authenticated claims, or nil outside the
// auth middleware.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// Authenticate verifies the bearer token and stores its claims in the
// request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			h.writeError(w, errors.NewUnauthorizedError("missing bearer token"))
			return
		}

		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &Claims{},
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.NewUnauthorizedError("unexpected signing method")
				}
				return []byte(h.jwtSecret), nil
			})
		if err != nil || !token.Valid {
			h.writeError(w, errors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || claims.UserID == "" || claims.CompanyID == "" {
			h.writeError(w, errors.NewUnauthorizedError("token is missing required claims"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}
