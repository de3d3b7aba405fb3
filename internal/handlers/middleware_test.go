package handlers

import (
	"testing"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/services"
	xhttp "github.com/coursebill/billing-api/pkg/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret string, claims services.UserClaims) string {
	t.Helper()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

type staticTokenParser struct {
	secret string
}

func (p *staticTokenParser) ParseToken(tokenStr string) (*services.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &services.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(p.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, services.ErrInvalidToken
	}
	return token.Claims.(*services.UserClaims), nil
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	mw := NewAuthMiddleware(&staticTokenParser{secret: "test-secret"})

	var gotClaims *services.UserClaims
	wrapped := mw.RequireAuth(func(ctx *xhttp.RequestCtx) {
		gotClaims = currentClaims(ctx)
		ctx.Response.SetStatusCode(xhttp.StatusOK)
	})

	t.Run("valid token passes claims through", func(t *testing.T) {
		gotClaims = nil
		token := signTestToken(t, "test-secret", services.UserClaims{UserID: 7, Email: "a@example.com", Roles: []string{model.RoleUser}})

		ctx := setupTestContext("GET", "/api/v1/users/current", nil)
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
		wrapped(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		require.NotNil(t, gotClaims)
		assert.Equal(t, int64(7), gotClaims.UserID)
	})

	t.Run("missing header", func(t *testing.T) {
		gotClaims = nil
		ctx := setupTestContext("GET", "/api/v1/users/current", nil)
		wrapped(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		assert.Nil(t, gotClaims)
	})

	t.Run("wrong secret", func(t *testing.T) {
		gotClaims = nil
		token := signTestToken(t, "other-secret", services.UserClaims{UserID: 7})

		ctx := setupTestContext("GET", "/api/v1/users/current", nil)
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
		wrapped(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		assert.Nil(t, gotClaims)
	})
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	mw := NewAuthMiddleware(&staticTokenParser{secret: "test-secret"})

	called := false
	wrapped := mw.RequireAdmin(func(ctx *xhttp.RequestCtx) {
		called = true
		ctx.Response.SetStatusCode(xhttp.StatusOK)
	})

	t.Run("admin allowed", func(t *testing.T) {
		called = false
		token := signTestToken(t, "test-secret", services.UserClaims{UserID: 1, Roles: []string{model.RoleUser, model.RoleAdmin}})

		ctx := setupTestContext("POST", "/api/v1/courses", nil)
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
		wrapped(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.True(t, called)
	})

	t.Run("plain user forbidden", func(t *testing.T) {
		called = false
		token := signTestToken(t, "test-secret", services.UserClaims{UserID: 7, Roles: []string{model.RoleUser}})

		ctx := setupTestContext("POST", "/api/v1/courses", nil)
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
		wrapped(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
		assert.False(t, called)
	})
}
