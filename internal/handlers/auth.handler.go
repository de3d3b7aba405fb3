package handlers

import (
	"context"
	"errors"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/services"
	xhttp "github.com/coursebill/billing-api/pkg/http"
	"github.com/fasthttp/router"
)

type AuthService interface {
	Register(ctx context.Context, email, password string) (string, *model.User, error)
	Authenticate(ctx context.Context, email, password string) (string, *model.User, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
}

type OwnedCoursesService interface {
	OwnedCourses(ctx context.Context, userID int64) ([]*model.OwnedCourse, error)
}

type AuthHandler struct {
	svc     AuthService
	courses OwnedCoursesService
}

func RegisterAuthRoutes(e *router.Group, h *AuthHandler, auth *AuthMiddleware) {
	e.POST("/auth", h.Login)
	e.POST("/register", h.Register)
	e.GET("/users/current", auth.RequireAuth(h.GetCurrentUser))
	e.GET("/users/current/courses", auth.RequireAuth(h.ListOwnedCourses))
}

func NewAuthHandler(authService AuthService, courses OwnedCoursesService) *AuthHandler {
	return &AuthHandler{
		svc:     authService,
		courses: courses,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user,omitempty"`
}

type ownedCoursesResponse struct {
	Items []*model.OwnedCourse `json:"items"`
}

func (h *AuthHandler) Login(ctx *xhttp.RequestCtx) {
	var req credentialsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	token, _, err := h.svc.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(ctx, xhttp.StatusUnauthorized, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, xhttp.StatusOK, tokenResponse{Token: token})
}

func (h *AuthHandler) Register(ctx *xhttp.RequestCtx) {
	var req credentialsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	token, user, err := h.svc.Register(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			writeError(ctx, xhttp.StatusForbidden, err.Error())
		case errors.Is(err, services.ErrWeakPassword), errors.Is(err, services.ErrInvalidEmail):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		default:
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(ctx, xhttp.StatusCreated, tokenResponse{Token: token, User: user})
}

func (h *AuthHandler) GetCurrentUser(ctx *xhttp.RequestCtx) {
	claims := currentClaims(ctx)

	user, err := h.svc.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, xhttp.StatusOK, user)
}

func (h *AuthHandler) ListOwnedCourses(ctx *xhttp.RequestCtx) {
	claims := currentClaims(ctx)

	items, err := h.courses.OwnedCourses(ctx, claims.UserID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, xhttp.StatusOK, ownedCoursesResponse{Items: items})
}
