package handlers

import (
	"strings"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/services"
	xhttp "github.com/coursebill/billing-api/pkg/http"
)

const claimsKey = "auth_claims"

type TokenParser interface {
	ParseToken(token string) (*services.UserClaims, error)
}

// AuthMiddleware guards routes with bearer-token auth. Claims of the
// authenticated user are stored on the request context.
type AuthMiddleware struct {
	tokens TokenParser
}

func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) RequireAuth(next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		header := string(ctx.Request.Header.Peek("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(ctx, xhttp.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := m.tokens.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(ctx, xhttp.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx.SetUserValue(claimsKey, claims)
		next(ctx)
	}
}

func (m *AuthMiddleware) RequireAdmin(next xhttp.RequestHandler) xhttp.RequestHandler {
	return m.RequireAuth(func(ctx *xhttp.RequestCtx) {
		claims := currentClaims(ctx)
		if claims == nil || !hasRole(claims, model.RoleAdmin) {
			writeError(ctx, xhttp.StatusForbidden, "admin access required")
			return
		}
		next(ctx)
	})
}

func currentClaims(ctx *xhttp.RequestCtx) *services.UserClaims {
	claims, _ := ctx.UserValue(claimsKey).(*services.UserClaims)
	return claims
}

func hasRole(claims *services.UserClaims, role string) bool {
	for _, r := range claims.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
