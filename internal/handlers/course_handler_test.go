package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/services"
	xhttp "github.com/coursebill/billing-api/pkg/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockCourseService struct {
	mock.Mock
}

func (m *MockCourseService) Create(ctx context.Context, req model.CourseCreateRequest) (*model.Course, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseService) Update(ctx context.Context, code string, req model.CourseUpdateRequest) (*model.Course, error) {
	args := m.Called(ctx, code, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseService) GetByCode(ctx context.Context, code string) (*model.Course, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseService) List(ctx context.Context) ([]*model.Course, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Course), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Pay(ctx context.Context, userID int64, courseCode string) (*model.Transaction, error) {
	args := m.Called(ctx, userID, courseCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func authedContext(method, path string, body []byte, claims *services.UserClaims) *xhttp.RequestCtx {
	ctx := setupTestContext(method, path, body)
	ctx.SetUserValue(claimsKey, claims)
	return ctx
}

func userClaims(id int64, roles ...string) *services.UserClaims {
	return &services.UserClaims{UserID: id, Email: "user@example.com", Roles: roles}
}

func TestCourseHandler_ListCourses(t *testing.T) {
	svc := new(MockCourseService)
	handler := NewCourseHandler(svc, new(MockPaymentService))

	svc.On("List", mock.Anything).Return([]*model.Course{
		{ID: 1, Code: "sport-manager", Title: "Sport Manager", Type: model.CourseTypeRent, Cost: decimal.NewFromInt(300), HasCost: true},
		{ID: 2, Code: "web-designer", Title: "Web Designer", Type: model.CourseTypeFree},
	}, nil)

	ctx := setupTestContext("GET", "/api/v1/courses", nil)
	handler.ListCourses(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var resp courseListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	require.Len(t, resp.Items, 2)
	require.NotNil(t, resp.Items[0].Price)
	assert.True(t, resp.Items[0].Price.Equal(decimal.NewFromInt(300)))
	assert.Nil(t, resp.Items[1].Price, "free courses have no price")
}

func TestCourseHandler_GetCourse(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockCourseService)
		handler := NewCourseHandler(svc, new(MockPaymentService))

		svc.On("GetByCode", mock.Anything, "sport-manager").Return(&model.Course{
			ID: 1, Code: "sport-manager", Title: "Sport Manager",
			Type: model.CourseTypeRent, Cost: decimal.NewFromInt(300), HasCost: true,
		}, nil)

		ctx := setupTestContext("GET", "/api/v1/courses/sport-manager", nil)
		ctx.SetUserValue("code", "sport-manager")
		handler.GetCourse(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("missing", func(t *testing.T) {
		svc := new(MockCourseService)
		handler := NewCourseHandler(svc, new(MockPaymentService))

		svc.On("GetByCode", mock.Anything, "ghost").Return(nil, services.ErrCourseNotFound)

		ctx := setupTestContext("GET", "/api/v1/courses/ghost", nil)
		ctx.SetUserValue("code", "ghost")
		handler.GetCourse(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestCourseHandler_CreateCourse(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockCourseService)
		handler := NewCourseHandler(svc, new(MockPaymentService))

		svc.On("Create", mock.Anything, mock.MatchedBy(func(req model.CourseCreateRequest) bool {
			return req.Code == "sport-manager" && req.Type == model.CourseTypeRent
		})).Return(&model.Course{ID: 1, Code: "sport-manager", Type: model.CourseTypeRent, Cost: decimal.NewFromInt(300), HasCost: true}, nil)

		body := []byte(`{"code":"sport-manager","title":"Sport Manager","type":"rent","cost":"300"}`)
		ctx := setupTestContext("POST", "/api/v1/courses", body)
		handler.CreateCourse(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
	})

	t.Run("duplicate code", func(t *testing.T) {
		svc := new(MockCourseService)
		handler := NewCourseHandler(svc, new(MockPaymentService))

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrCourseExists)

		body := []byte(`{"code":"sport-manager","title":"Sport Manager","type":"free"}`)
		ctx := setupTestContext("POST", "/api/v1/courses", body)
		handler.CreateCourse(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("validation error", func(t *testing.T) {
		svc := new(MockCourseService)
		handler := NewCourseHandler(svc, new(MockPaymentService))

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, model.ErrCostRequired)

		body := []byte(`{"code":"sport-manager","title":"Sport Manager","type":"rent"}`)
		ctx := setupTestContext("POST", "/api/v1/courses", body)
		handler.CreateCourse(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestCourseHandler_PayCourse(t *testing.T) {
	t.Run("successful payment", func(t *testing.T) {
		svc := new(MockCourseService)
		payments := new(MockPaymentService)
		handler := NewCourseHandler(svc, payments)

		payments.On("Pay", mock.Anything, int64(7), "sport-manager").
			Return(&model.Transaction{ID: 42, UserID: 7, Type: model.OperationPayment, Value: decimal.NewFromInt(300)}, nil)

		ctx := authedContext("POST", "/api/v1/courses/sport-manager/pay", nil, userClaims(7, model.RoleUser))
		ctx.SetUserValue("code", "sport-manager")
		handler.PayCourse(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var resp payResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Transaction)
		assert.Equal(t, int64(42), resp.Transaction.ID)
	})

	t.Run("insufficient balance maps to 406", func(t *testing.T) {
		svc := new(MockCourseService)
		payments := new(MockPaymentService)
		handler := NewCourseHandler(svc, payments)

		payments.On("Pay", mock.Anything, int64(7), "sport-manager").
			Return(nil, services.ErrInsufficientBalance)

		ctx := authedContext("POST", "/api/v1/courses/sport-manager/pay", nil, userClaims(7, model.RoleUser))
		ctx.SetUserValue("code", "sport-manager")
		handler.PayCourse(ctx)

		assert.Equal(t, 406, ctx.Response.StatusCode())

		var resp map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, "insufficient balance", resp["error"])
	})

	t.Run("free course records a zero-value payment", func(t *testing.T) {
		svc := new(MockCourseService)
		payments := new(MockPaymentService)
		handler := NewCourseHandler(svc, payments)

		code := "web-designer"
		payments.On("Pay", mock.Anything, int64(7), "web-designer").
			Return(&model.Transaction{
				ID: 43, UserID: 7, Type: model.OperationPayment,
				Value: decimal.NewFromInt(0), CourseCode: &code,
			}, nil)

		ctx := authedContext("POST", "/api/v1/courses/web-designer/pay", nil, userClaims(7, model.RoleUser))
		ctx.SetUserValue("code", "web-designer")
		handler.PayCourse(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		payments.AssertExpectations(t)

		var resp payResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Transaction)
		assert.True(t, resp.Transaction.Value.IsZero())
		require.NotNil(t, resp.Transaction.CourseCode)
		assert.Equal(t, "web-designer", *resp.Transaction.CourseCode)
	})

	t.Run("unknown course", func(t *testing.T) {
		svc := new(MockCourseService)
		payments := new(MockPaymentService)
		handler := NewCourseHandler(svc, payments)

		payments.On("Pay", mock.Anything, int64(7), "ghost").
			Return(nil, services.ErrCourseNotFound)

		ctx := authedContext("POST", "/api/v1/courses/ghost/pay", nil, userClaims(7, model.RoleUser))
		ctx.SetUserValue("code", "ghost")
		handler.PayCourse(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}
