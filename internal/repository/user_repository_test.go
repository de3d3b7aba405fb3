package repository

import (
	"context"
	"testing"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("create user", func(t *testing.T) {
		u := &model.User{
			Email:        "alice@example.com",
			PasswordHash: "$2a$10$hash",
			Balance:      decimal.NewFromInt(100),
			Roles:        []string{model.RoleUser},
		}

		created, err := repo.Create(ctx, u)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, u.Email, created.Email)
		assert.True(t, created.Balance.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, []string{model.RoleUser}, created.Roles)
	})

	t.Run("duplicate email fails", func(t *testing.T) {
		u := &model.User{
			Email:        "bob@example.com",
			PasswordHash: "$2a$10$hash",
			Roles:        []string{model.RoleUser},
		}
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)

		_, err = repo.Create(ctx, &model.User{
			Email:        "bob@example.com",
			PasswordHash: "$2a$10$other",
			Roles:        []string{model.RoleUser},
		})
		assert.Error(t, err)
	})
}

func TestUserRepository_Get(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	seeded, err := repo.Create(ctx, &model.User{
		Email:        "carol@example.com",
		PasswordHash: "$2a$10$hash",
		Balance:      decimal.NewFromInt(250),
		Roles:        []string{model.RoleUser, model.RoleAdmin},
	})
	require.NoError(t, err)

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, seeded.Email, got.Email)
		assert.True(t, got.IsAdmin())
	})

	t.Run("get by email", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, got.ID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 99999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_CreditBalance(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := repo.Create(ctx, &model.User{
		Email:        "dave@example.com",
		PasswordHash: "$2a$10$hash",
		Balance:      decimal.NewFromInt(10),
		Roles:        []string{model.RoleUser},
	})
	require.NoError(t, err)

	t.Run("credit adds to balance", func(t *testing.T) {
		err := repo.CreditBalance(ctx, user.ID, decimal.NewFromFloat(90.50))
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromFloat(100.50)), "got %s", got.Balance)
	})

	t.Run("credit unknown user", func(t *testing.T) {
		err := repo.CreditBalance(ctx, 99999, decimal.NewFromInt(5))
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_DebitBalance(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := repo.Create(ctx, &model.User{
		Email:        "erin@example.com",
		PasswordHash: "$2a$10$hash",
		Balance:      decimal.NewFromInt(300),
		Roles:        []string{model.RoleUser},
	})
	require.NoError(t, err)

	t.Run("debit subtracts from balance", func(t *testing.T) {
		err := repo.DebitBalance(ctx, user.ID, decimal.NewFromInt(120))
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(180)))
	})

	t.Run("debit down to zero", func(t *testing.T) {
		err := repo.DebitBalance(ctx, user.ID, decimal.NewFromInt(180))
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.IsZero())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		err := repo.DebitBalance(ctx, user.ID, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.Balance.IsZero(), "failed debit must not change balance")
	})

	t.Run("debit unknown user", func(t *testing.T) {
		err := repo.DebitBalance(ctx, 99999, decimal.NewFromInt(5))
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	emails := []string{"u1@example.com", "u2@example.com", "u3@example.com"}
	for _, email := range emails {
		_, err := repo.Create(ctx, &model.User{
			Email:        email,
			PasswordHash: "$2a$10$hash",
			Roles:        []string{model.RoleUser},
		})
		require.NoError(t, err)
	}

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, u := range users {
		assert.Equal(t, emails[i], u.Email)
	}
}
