package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/glowmart/cart-session/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// AuthenticateOptional admits the request either way. A missing or invalid
// credential is a first-class cart state (the visitor sees an empty cart),
// so read endpoints must not answer 401; the session decides from the
// absence of claims in the context.
func (m *AuthMiddleware) AuthenticateOptional(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := LoggerFromContext(r.Context())

		authHeader := r.Header.Get("Authorization")

		tokenParts := strings.Split(authHeader, " ")
		if authHeader == "" || len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := tokenParts[1]
		claims := &models.Claims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return m.jwtKey, nil
		})

		if err != nil || !token.Valid ||
			(claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now())) {
			logger.Debug("Treating request as unauthenticated", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		ctx = context.WithValue(ctx, TokenContextKey, tokenString)
		ctx = context.WithValue(ctx, LoggerKey, logger.With(slog.String("userId", claims.UserID.String())))

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
