package repository

import (
	"github.com/coursebill/billing-api/internal/model"
	"github.com/shopspring/decimal"
)

type CourseEntity struct {
	ID    int64               `db:"id"    gorm:"primaryKey;autoIncrement;column:id"`
	Code  string              `db:"code"  gorm:"column:code;not null;unique"`
	Title string              `db:"title" gorm:"column:title;not null"`
	Type  string              `db:"type"  gorm:"column:type;not null"`
	Cost  decimal.NullDecimal `db:"cost"  gorm:"column:cost;type:numeric(12,2)"`
}

func (CourseEntity) TableName() string {
	return "courses"
}

func toCourseEntity(m *model.Course) *CourseEntity {
	if m == nil {
		return nil
	}
	return &CourseEntity{
		ID:    m.ID,
		Code:  m.Code,
		Title: m.Title,
		Type:  string(m.Type),
		Cost:  decimal.NullDecimal{Decimal: m.Cost, Valid: m.HasCost},
	}
}

func toCourseModel(e *CourseEntity) *model.Course {
	if e == nil {
		return nil
	}
	return &model.Course{
		ID:      e.ID,
		Code:    e.Code,
		Title:   e.Title,
		Type:    model.CourseType(e.Type),
		Cost:    e.Cost.Decimal,
		HasCost: e.Cost.Valid,
	}
}

func toCourseModels(entities []*CourseEntity) []*model.Course {
	if entities == nil {
		return nil
	}
	models := make([]*model.Course, len(entities))
	for i, e := range entities {
		models[i] = toCourseModel(e)
	}
	return models
}
