package handlers

import (
	"context"
	"errors"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/services"
	xhttp "github.com/coursebill/billing-api/pkg/http"
	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"
)

type CourseService interface {
	Create(ctx context.Context, req model.CourseCreateRequest) (*model.Course, error)
	Update(ctx context.Context, code string, req model.CourseUpdateRequest) (*model.Course, error)
	GetByCode(ctx context.Context, code string) (*model.Course, error)
	List(ctx context.Context) ([]*model.Course, error)
}

type PaymentService interface {
	Pay(ctx context.Context, userID int64, courseCode string) (*model.Transaction, error)
}

type CourseHandler struct {
	svc      CourseService
	payments PaymentService
}

func RegisterCourseRoutes(e *router.Group, h *CourseHandler, auth *AuthMiddleware) {
	e.GET("/courses", h.ListCourses)
	e.POST("/courses", auth.RequireAdmin(h.CreateCourse))
	e.GET("/courses/{code}", h.GetCourse)
	e.POST("/courses/{code}", auth.RequireAdmin(h.UpdateCourse))
	e.POST("/courses/{code}/pay", auth.RequireAuth(h.PayCourse))
}

func NewCourseHandler(courseService CourseService, payments PaymentService) *CourseHandler {
	return &CourseHandler{
		svc:      courseService,
		payments: payments,
	}
}

type courseResponse struct {
	Code  string           `json:"code"`
	Title string           `json:"title"`
	Type  model.CourseType `json:"type"`
	Price *decimal.Decimal `json:"price"`
}

type courseListResponse struct {
	Items []courseResponse `json:"items"`
}

type payResponse struct {
	Success     bool               `json:"success"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

func toCourseResponse(c *model.Course) courseResponse {
	resp := courseResponse{
		Code:  c.Code,
		Title: c.Title,
		Type:  c.Type,
	}
	if c.Type != model.CourseTypeFree && c.HasCost {
		price := c.Cost
		resp.Price = &price
	}
	return resp
}

func (h *CourseHandler) ListCourses(ctx *xhttp.RequestCtx) {
	courses, err := h.svc.List(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}

	items := make([]courseResponse, len(courses))
	for i, c := range courses {
		items[i] = toCourseResponse(c)
	}
	writeJSON(ctx, xhttp.StatusOK, courseListResponse{Items: items})
}

func (h *CourseHandler) GetCourse(ctx *xhttp.RequestCtx) {
	code, _ := ctx.UserValue("code").(string)

	course, err := h.svc.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, xhttp.StatusOK, toCourseResponse(course))
}

func (h *CourseHandler) CreateCourse(ctx *xhttp.RequestCtx) {
	var req model.CourseCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	course, err := h.svc.Create(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrCourseExists) {
			writeError(ctx, xhttp.StatusConflict, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	writeJSON(ctx, xhttp.StatusCreated, toCourseResponse(course))
}

func (h *CourseHandler) UpdateCourse(ctx *xhttp.RequestCtx) {
	code, _ := ctx.UserValue("code").(string)

	var req model.CourseUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	course, err := h.svc.Update(ctx, code, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCourseNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrCourseExists):
			writeError(ctx, xhttp.StatusConflict, err.Error())
		default:
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(ctx, xhttp.StatusOK, toCourseResponse(course))
}

func (h *CourseHandler) PayCourse(ctx *xhttp.RequestCtx) {
	claims := currentClaims(ctx)
	code, _ := ctx.UserValue("code").(string)

	// Free courses go through the engine too: the zero-value ledger row
	// is what makes the course show up under /users/current/courses.
	txn, err := h.payments.Pay(ctx, claims.UserID, code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientBalance):
			writeError(ctx, xhttp.StatusNotAcceptable, "insufficient balance")
		case errors.Is(err, services.ErrCourseNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		default:
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(ctx, xhttp.StatusOK, payResponse{Success: true, Transaction: txn})
}
