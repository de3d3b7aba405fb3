package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/services"
	xhttp "github.com/coursebill/billing-api/pkg/http"
	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"
)

type TransactionService interface {
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error)
}

type DepositService interface {
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc      TransactionService
	payments DepositService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler, auth *AuthMiddleware) {
	e.GET("/transactions", auth.RequireAuth(h.ListTransactions))
	e.POST("/deposit", auth.RequireAuth(h.Deposit))
}

func NewTransactionHandler(transactionService TransactionService, payments DepositService) *TransactionHandler {
	return &TransactionHandler{
		svc:      transactionService,
		payments: payments,
	}
}

type depositRequest struct {
	UserID *int64          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type transactionListResponse struct {
	Items []*model.Transaction `json:"items"`
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	claims := currentClaims(ctx)

	f := model.TransactionFilter{UserID: &claims.UserID}

	// Admins may inspect any user's history.
	if v := query(ctx, "user_id"); v != "" && hasRole(claims, model.RoleAdmin) {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.UserID = &id
		}
	}
	if v := query(ctx, "type"); v != "" {
		if v != model.OperationPayment && v != model.OperationDeposit {
			writeError(ctx, xhttp.StatusBadRequest, "unknown transaction type: "+v)
			return
		}
		f.Type = &v
	}
	if v := query(ctx, "course_code"); v != "" {
		f.CourseCode = &v
	}
	if v := query(ctx, "skip_expired"); v != "" {
		f.SkipExpired = strings.EqualFold(v, "true") || v == "1"
	}

	items, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, xhttp.StatusOK, transactionListResponse{Items: items})
}

func (h *TransactionHandler) Deposit(ctx *xhttp.RequestCtx) {
	claims := currentClaims(ctx)

	var req depositRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	userID := claims.UserID
	if req.UserID != nil && *req.UserID != claims.UserID {
		if !hasRole(claims, model.RoleAdmin) {
			writeError(ctx, xhttp.StatusForbidden, "cannot deposit to another account")
			return
		}
		userID = *req.UserID
	}

	txn, err := h.payments.Deposit(ctx, userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNonPositiveAmount):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		default:
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(ctx, xhttp.StatusOK, txn)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
