package repository

import (
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	ID             int64           `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64           `db:"user_id"         gorm:"column:user_id;not null;index"`
	Type           string          `db:"type"            gorm:"column:type;not null"`
	Value          decimal.Decimal `db:"value"           gorm:"column:value;type:numeric(12,2);not null"`
	CourseID       *int64          `db:"course_id"       gorm:"column:course_id;index"`
	PeriodValidity *time.Time      `db:"period_validity" gorm:"column:period_validity"`
	CreatedAt      time.Time       `db:"created_at"      gorm:"column:created_at;not null"`

	// Never populated by the repositories; declares the FK so schemas
	// built from the entity cascade-delete a user's ledger with the user.
	User *UserEntity `db:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

// ledgerRowEntity is the join shape of the filtered history query:
// a transaction annotated with the code of its course, when it has one.
type ledgerRowEntity struct {
	ID             int64           `gorm:"column:id"`
	UserID         int64           `gorm:"column:user_id"`
	Type           string          `gorm:"column:type"`
	Value          decimal.Decimal `gorm:"column:value"`
	CourseID       *int64          `gorm:"column:course_id"`
	CourseCode     *string         `gorm:"column:course_code"`
	PeriodValidity *time.Time      `gorm:"column:period_validity"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:             m.ID,
		UserID:         m.UserID,
		Type:           m.Type,
		Value:          m.Value,
		CourseID:       m.CourseID,
		PeriodValidity: m.PeriodValidity,
		CreatedAt:      m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:             e.ID,
		UserID:         e.UserID,
		Type:           e.Type,
		Value:          e.Value,
		CourseID:       e.CourseID,
		PeriodValidity: e.PeriodValidity,
		CreatedAt:      e.CreatedAt,
	}
}

func toLedgerRowModel(e *ledgerRowEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:             e.ID,
		UserID:         e.UserID,
		Type:           e.Type,
		Value:          e.Value,
		CourseID:       e.CourseID,
		CourseCode:     e.CourseCode,
		PeriodValidity: e.PeriodValidity,
		CreatedAt:      e.CreatedAt,
	}
}

func toLedgerRowModels(entities []*ledgerRowEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toLedgerRowModel(e)
	}
	return models
}
