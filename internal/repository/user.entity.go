package repository

import (
	"strings"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/shopspring/decimal"
)

type UserEntity struct {
	ID           int64           `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	Email        string          `db:"email"         gorm:"column:email;not null;unique"`
	PasswordHash string          `db:"password_hash" gorm:"column:password_hash;not null"`
	Balance      decimal.Decimal `db:"balance"       gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	Roles        string          `db:"roles"         gorm:"column:roles;not null;default:''"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Balance:      m.Balance,
		Roles:        strings.Join(m.Roles, ","),
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	var roles []string
	if e.Roles != "" {
		roles = strings.Split(e.Roles, ",")
	}
	return &model.User{
		ID:           e.ID,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Balance:      e.Balance,
		Roles:        roles,
	}
}

func toUserModels(entities []*UserEntity) []*model.User {
	if entities == nil {
		return nil
	}
	models := make([]*model.User, len(entities))
	for i, e := range entities {
		models[i] = toUserModel(e)
	}
	return models
}
