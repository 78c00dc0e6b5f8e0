package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates token verification to the Issuer.
type Middleware struct {
	issuer *Issuer
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given Issuer.
func NewMiddleware(issuer *Issuer, logger *zap.Logger) *Middleware {
	return &Middleware{
		issuer: issuer,
		logger: logger,
	}
}

// RequireAuth validates the Authorization header token and sets claims in
// context for downstream handlers. Both "Bearer <token>" and a bare token
// are accepted; older field clients send the token without a scheme.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			m.unauthorized(w, "Access denied: no token provided")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims, err := m.issuer.Parse(tokenString)
		if err != nil {
			m.logger.Debug("Token verification failed", zap.Error(err))
			m.unauthorized(w, "Access denied: invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
