package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EndingRental is one rented course whose rental period ends within the
// notification horizon. Input contract of the expiry-notice job.
type EndingRental struct {
	CourseCode     string    `json:"course_code"`
	CourseTitle    string    `json:"course_title"`
	PeriodValidity time.Time `json:"expires_at"`
}

// CourseSales is one line of the monthly paid-courses report: the number
// of payments and the total paid for a single course inside the window.
type CourseSales struct {
	Title string          `json:"title"`
	Type  CourseType      `json:"type"`
	Count int64           `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

// OwnedCourse is a course the user has access to: buy courses permanently,
// rent courses while the rental period is still running.
type OwnedCourse struct {
	Code      string          `json:"code"`
	Title     string          `json:"title"`
	Type      CourseType      `json:"type"`
	Cost      decimal.Decimal `json:"cost"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}
