package services

import (
	"context"
	"testing"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(userRepo *MockUserRepository) *AuthService {
	return NewAuthService(userRepo, "test-secret", time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("successful registration issues token", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		service := newAuthService(userRepo)

		userRepo.On("GetByEmail", ctx, "new@example.com").Return(nil, repository.ErrUserNotFound)
		userRepo.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
			return u.Email == "new@example.com" &&
				u.Balance.IsZero() &&
				len(u.Roles) == 1 && u.Roles[0] == model.RoleUser &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")) == nil
		})).Return(&model.User{ID: 1, Email: "new@example.com", Roles: []string{model.RoleUser}}, nil)

		token, user, err := service.Register(ctx, "New@Example.com", "secret123")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, int64(1), user.ID)

		claims, err := service.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, int64(1), claims.UserID)
		assert.Equal(t, "new@example.com", claims.Email)

		userRepo.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		service := newAuthService(userRepo)

		userRepo.On("GetByEmail", ctx, "taken@example.com").
			Return(&model.User{ID: 2, Email: "taken@example.com"}, nil)

		_, _, err := service.Register(ctx, "taken@example.com", "secret123")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("short password", func(t *testing.T) {
		service := newAuthService(new(MockUserRepository))

		_, _, err := service.Register(ctx, "a@example.com", "123")
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("bad email", func(t *testing.T) {
		service := newAuthService(new(MockUserRepository))

		_, _, err := service.Register(ctx, "not-an-email", "secret123")
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &model.User{
		ID:           1,
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Balance:      decimal.NewFromInt(100),
		Roles:        []string{model.RoleUser, model.RoleAdmin},
	}

	t.Run("valid credentials", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		service := newAuthService(userRepo)

		userRepo.On("GetByEmail", ctx, "alice@example.com").Return(stored, nil)

		token, user, err := service.Authenticate(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, user.ID)

		claims, err := service.ParseToken(token)
		require.NoError(t, err)
		assert.Contains(t, claims.Roles, model.RoleAdmin)
	})

	t.Run("wrong password", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		service := newAuthService(userRepo)

		userRepo.On("GetByEmail", ctx, "alice@example.com").Return(stored, nil)

		_, _, err := service.Authenticate(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email maps to the same error", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		service := newAuthService(userRepo)

		userRepo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, repository.ErrUserNotFound)

		_, _, err := service.Authenticate(ctx, "ghost@example.com", "secret123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthService_ParseToken(t *testing.T) {
	t.Run("garbage token", func(t *testing.T) {
		service := newAuthService(new(MockUserRepository))

		_, err := service.ParseToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		ctx := context.Background()
		userRepo := new(MockUserRepository)
		expiring := NewAuthService(userRepo, "test-secret", -time.Minute)

		userRepo.On("GetByEmail", ctx, "alice@example.com").Return(&model.User{
			ID:           1,
			Email:        "alice@example.com",
			PasswordHash: mustHash(t, "secret123"),
		}, nil)

		token, _, err := expiring.Authenticate(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		_, err = expiring.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		ctx := context.Background()
		userRepo := new(MockUserRepository)
		other := NewAuthService(userRepo, "other-secret", time.Hour)

		userRepo.On("GetByEmail", ctx, "alice@example.com").Return(&model.User{
			ID:           1,
			Email:        "alice@example.com",
			PasswordHash: mustHash(t, "secret123"),
		}, nil)

		token, _, err := other.Authenticate(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		service := newAuthService(new(MockUserRepository))
		_, err = service.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}
