package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glowmart/cart-session/internal/api/middleware"
	"github.com/glowmart/cart-session/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWTKey = []byte("test-signing-key")

func signToken(t *testing.T, userID uuid.UUID, expiresAt time.Time) string {
	t.Helper()

	claims := &models.Claims{
		UserID: userID,
		Email:  "shopper@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTKey)
	require.NoError(t, err)

	return signed
}

func TestAuthenticate(t *testing.T) {
	authMiddleware := middleware.NewAuthMiddleware(testJWTKey)

	t.Run("Valid token populates claims and credential", func(t *testing.T) {
		userID := uuid.New()
		token := signToken(t, userID, time.Now().Add(time.Hour))

		var gotClaims *models.Claims

		var gotToken string

		handler := authMiddleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClaims, _ = middleware.ClaimsFromContext(r.Context())
			gotToken = middleware.TokenFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, userID, gotClaims.UserID)
		assert.Equal(t, token, gotToken)
	})

	t.Run("Missing header is rejected", func(t *testing.T) {
		handler := authMiddleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("handler should not be reached")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Malformed header is rejected", func(t *testing.T) {
		handler := authMiddleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("handler should not be reached")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Expired token is rejected", func(t *testing.T) {
		token := signToken(t, uuid.New(), time.Now().Add(-time.Hour))

		handler := authMiddleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("handler should not be reached")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Token signed with another key is rejected", func(t *testing.T) {
		foreign := middleware.NewAuthMiddleware([]byte("other-key"))
		token := signToken(t, uuid.New(), time.Now().Add(time.Hour))

		handler := foreign.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("handler should not be reached")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthenticateOptional(t *testing.T) {
	authMiddleware := middleware.NewAuthMiddleware(testJWTKey)

	t.Run("Missing token proceeds without claims", func(t *testing.T) {
		var hadClaims bool

		var gotToken string

		handler := authMiddleware.AuthenticateOptional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hadClaims = middleware.ClaimsFromContext(r.Context())
			gotToken = middleware.TokenFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, hadClaims)
		assert.Empty(t, gotToken)
	})

	t.Run("Invalid token proceeds without claims instead of 401", func(t *testing.T) {
		var hadClaims bool

		handler := authMiddleware.AuthenticateOptional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hadClaims = middleware.ClaimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, hadClaims)
	})

	t.Run("Valid token populates claims", func(t *testing.T) {
		userID := uuid.New()
		token := signToken(t, userID, time.Now().Add(time.Hour))

		var gotClaims *models.Claims

		handler := authMiddleware.AuthenticateOptional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClaims, _ = middleware.ClaimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, userID, gotClaims.UserID)
	})
}
