package repository

import (
	"context"
	"errors"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	entity := toUserEntity(u)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toUserModel(entity), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserModel(&entity), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("email = ?", email).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toUserModel(&entity), nil
}

func (r *UserRepository) List(ctx context.Context) ([]*model.User, error) {
	var entities []*UserEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toUserModels(entities), nil
}

// CreditBalance atomically adds amount to the user's balance using
// SELECT FOR UPDATE. Must run inside the caller's unit of work so a
// later failure rolls the credit back.
func (r *UserRepository) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	entity, err := r.lockUser(ctx, userID)
	if err != nil {
		return err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", entity.ID).
		Update("balance", entity.Balance.Add(amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// DebitBalance atomically subtracts amount from the user's balance. The
// row lock serializes concurrent payments so the sufficient-funds check
// can never act on a stale balance.
func (r *UserRepository) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	entity, err := r.lockUser(ctx, userID)
	if err != nil {
		return err
	}

	if entity.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", entity.ID).
		Update("balance", entity.Balance.Sub(amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

func (r *UserRepository) lockUser(ctx context.Context, userID int64) (*UserEntity, error) {
	var entity UserEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &entity, nil
}
