package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vocabustudy/admin-portal/firebase"
)

// Context key type to avoid collisions
type contextKey string

// ClaimsKey is the context key for the verified token claims
const ClaimsKey contextKey = "claims"

// GetRequestIDFromContext retrieves the request ID assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// ClaimsFromContext retrieves the verified claim set, or nil when the request
// did not pass through RequireAuthorization
func ClaimsFromContext(ctx context.Context) *firebase.ClaimSet {
	if claims, ok := ctx.Value(ClaimsKey).(*firebase.ClaimSet); ok {
		return claims
	}
	return nil
}

// WithClaims adds the verified claim set to the context
func WithClaims(ctx context.Context, claims *firebase.ClaimSet) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
