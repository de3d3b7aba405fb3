package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

type CourseType string

const (
	CourseTypeRent CourseType = "rent"
	CourseTypeFree CourseType = "free"
	CourseTypeBuy  CourseType = "buy"
)

var (
	ErrUnknownCourseType = errors.New("unknown course type")
	ErrCostRequired      = errors.New("cost is required for rent and buy courses")
	ErrNegativeCost      = errors.New("cost must not be negative")
)

type Course struct {
	ID    int64           `json:"id"`
	Code  string          `json:"code"`
	Title string          `json:"title"`
	Type  CourseType      `json:"type"`
	Cost  decimal.Decimal `json:"cost"`
	// HasCost is false for free courses: cost carries no meaning there.
	HasCost bool `json:"-"`
}

func (Course) TableName() string { return "courses" }

// Price returns the effective cost of the course. Free courses are
// always zero regardless of what was stored.
func (c *Course) Price() decimal.Decimal {
	if c.Type == CourseTypeFree || !c.HasCost {
		return decimal.Zero
	}
	return c.Cost
}

// Validate enforces the cost invariant: rent and buy courses must carry
// a non-negative cost, free courses have no cost semantics.
func (c *Course) Validate() error {
	switch c.Type {
	case CourseTypeRent, CourseTypeBuy:
		if !c.HasCost {
			return ErrCostRequired
		}
		if c.Cost.IsNegative() {
			return ErrNegativeCost
		}
	case CourseTypeFree:
		// ignored on read, nothing to check
	default:
		return ErrUnknownCourseType
	}
	return nil
}

type CourseCreateRequest struct {
	Code  string           `json:"code"`
	Title string           `json:"title"`
	Type  CourseType       `json:"type"`
	Cost  *decimal.Decimal `json:"cost"`
}

type CourseUpdateRequest struct {
	Code  *string          `json:"code"`
	Title *string          `json:"title"`
	Type  *CourseType      `json:"type"`
	Cost  *decimal.Decimal `json:"cost"`
}
