package middleware

import (
	"context"
	"net/http"

	"github.com/vocabustudy/admin-portal/firebase"
	"github.com/vocabustudy/admin-portal/utils"
	"go.uber.org/zap"
)

// Authorizer decides whether an Authorization header grants access
type Authorizer interface {
	Authorize(ctx context.Context, authHeader string, predicate firebase.Predicate) (*firebase.ClaimSet, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authorizer Authorizer
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authorizer Authorizer, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authorizer: authorizer,
		logger:     logger,
	}
}

// RequireAuthorization admits requests whose bearer token verifies and satisfies
// predicate. Every denial gets the same plain 401; the reason is only logged.
func (m *AuthMiddleware) RequireAuthorization(predicate firebase.Predicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims, err := m.authorizer.Authorize(ctx, r.Header.Get("Authorization"), predicate)
			if err != nil {
				m.logger.Warn("request denied",
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("reason", firebase.Reason(err)),
					zap.Error(err))
				_ = utils.WriteUnauthorized(w)
				return
			}

			m.logger.Debug("authorization successful",
				zap.String("request_id", requestID),
				zap.String("sub", claims.Subject))

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}
