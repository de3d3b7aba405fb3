package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, email, password string) (string, *model.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*model.User), args.Error(2)
}

func (m *MockAuthService) Authenticate(ctx context.Context, email, password string) (string, *model.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*model.User), args.Error(2)
}

func (m *MockAuthService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockOwnedCoursesService struct {
	mock.Mock
}

func (m *MockOwnedCoursesService) OwnedCourses(ctx context.Context, userID int64) ([]*model.OwnedCourse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OwnedCourse), args.Error(1)
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, new(MockOwnedCoursesService))

		svc.On("Authenticate", mock.Anything, "alice@example.com", "secret123").
			Return("signed.jwt.token", &model.User{ID: 1, Email: "alice@example.com"}, nil)

		ctx := setupTestContext("POST", "/api/v1/auth", []byte(`{"email":"alice@example.com","password":"secret123"}`))
		handler.Login(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var resp tokenResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, "signed.jwt.token", resp.Token)
	})

	t.Run("bad credentials", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, new(MockOwnedCoursesService))

		svc.On("Authenticate", mock.Anything, "alice@example.com", "wrong").
			Return("", nil, services.ErrInvalidCredentials)

		ctx := setupTestContext("POST", "/api/v1/auth", []byte(`{"email":"alice@example.com","password":"wrong"}`))
		handler.Login(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
	})
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("new user", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, new(MockOwnedCoursesService))

		svc.On("Register", mock.Anything, "new@example.com", "secret123").
			Return("signed.jwt.token", &model.User{ID: 5, Email: "new@example.com", Roles: []string{model.RoleUser}}, nil)

		ctx := setupTestContext("POST", "/api/v1/register", []byte(`{"email":"new@example.com","password":"secret123"}`))
		handler.Register(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var resp tokenResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, int64(5), resp.User.ID)
	})

	t.Run("taken email maps to 403", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, new(MockOwnedCoursesService))

		svc.On("Register", mock.Anything, "taken@example.com", "secret123").
			Return("", nil, services.ErrEmailTaken)

		ctx := setupTestContext("POST", "/api/v1/register", []byte(`{"email":"taken@example.com","password":"secret123"}`))
		handler.Register(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("weak password", func(t *testing.T) {
		svc := new(MockAuthService)
		handler := NewAuthHandler(svc, new(MockOwnedCoursesService))

		svc.On("Register", mock.Anything, "new@example.com", "123").
			Return("", nil, services.ErrWeakPassword)

		ctx := setupTestContext("POST", "/api/v1/register", []byte(`{"email":"new@example.com","password":"123"}`))
		handler.Register(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	svc := new(MockAuthService)
	handler := NewAuthHandler(svc, new(MockOwnedCoursesService))

	svc.On("GetUser", mock.Anything, int64(7)).Return(&model.User{
		ID:      7,
		Email:   "user@example.com",
		Balance: decimal.NewFromInt(150),
		Roles:   []string{model.RoleUser},
	}, nil)

	ctx := authedContext("GET", "/api/v1/users/current", nil, userClaims(7, model.RoleUser))
	handler.GetCurrentUser(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var resp model.User
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.Equal(t, "user@example.com", resp.Email)
	assert.True(t, resp.Balance.Equal(decimal.NewFromInt(150)))
}

func TestAuthHandler_ListOwnedCourses(t *testing.T) {
	svc := new(MockAuthService)
	courses := new(MockOwnedCoursesService)
	handler := NewAuthHandler(svc, courses)

	expiry := time.Now().Add(72 * time.Hour)
	courses.On("OwnedCourses", mock.Anything, int64(7)).Return([]*model.OwnedCourse{
		{Code: "internet-marketer", Title: "Internet Marketer", Type: model.CourseTypeBuy, Cost: decimal.NewFromInt(500)},
		{Code: "sport-manager", Title: "Sport Manager", Type: model.CourseTypeRent, Cost: decimal.NewFromInt(300), ExpiresAt: &expiry},
	}, nil)

	ctx := authedContext("GET", "/api/v1/users/current/courses", nil, userClaims(7, model.RoleUser))
	handler.ListOwnedCourses(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var resp ownedCoursesResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Nil(t, resp.Items[0].ExpiresAt)
	assert.NotNil(t, resp.Items[1].ExpiresAt)
}
