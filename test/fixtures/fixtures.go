package fixtures

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursebill/billing-api/internal/model"
)

var (
	CourseSportManager = model.Course{
		Code:    "sport-manager",
		Title:   "Sport-Manager",
		Type:    model.CourseTypeRent,
		Cost:    decimal.NewFromInt(300),
		HasCost: true,
	}

	CourseWebDesigner = model.Course{
		Code:  "web-designer",
		Title: "Web-Designer",
		Type:  model.CourseTypeFree,
	}

	CourseInternetMarketer = model.Course{
		Code:    "internet-marketer",
		Title:   "Internet-Marketer",
		Type:    model.CourseTypeBuy,
		Cost:    decimal.NewFromInt(500),
		HasCost: true,
	}
)

var (
	TestUser = model.User{
		ID:      1,
		Email:   "student@example.com",
		Balance: decimal.NewFromInt(1000),
		Roles:   []string{model.RoleUser},
	}

	TestAdmin = model.User{
		ID:      2,
		Email:   "admin@example.com",
		Balance: decimal.Zero,
		Roles:   []string{model.RoleUser, model.RoleAdmin},
	}

	TestUserLowBalance = model.User{
		ID:      3,
		Email:   "broke@example.com",
		Balance: decimal.NewFromInt(1),
		Roles:   []string{model.RoleUser},
	}
)

func NewTestUser(id int64, email string, balance int64, roles ...string) *model.User {
	if len(roles) == 0 {
		roles = []string{model.RoleUser}
	}
	return &model.User{
		ID:      id,
		Email:   email,
		Balance: decimal.NewFromInt(balance),
		Roles:   roles,
	}
}

func NewTestCourse(code, title string, courseType model.CourseType, cost int64) *model.Course {
	c := &model.Course{
		Code:  code,
		Title: title,
		Type:  courseType,
	}
	if courseType != model.CourseTypeFree {
		c.Cost = decimal.NewFromInt(cost)
		c.HasCost = true
	}
	return c
}

func NewDeposit(userID int64, amount int64) *model.Transaction {
	return &model.Transaction{
		UserID:    userID,
		Type:      model.OperationDeposit,
		Value:     decimal.NewFromInt(amount),
		CreatedAt: time.Now(),
	}
}

func NewPayment(userID int64, amount int64, courseID int64, expiresAt *time.Time) *model.Transaction {
	return &model.Transaction{
		UserID:         userID,
		Type:           model.OperationPayment,
		Value:          decimal.NewFromInt(amount),
		CourseID:       &courseID,
		PeriodValidity: expiresAt,
		CreatedAt:      time.Now(),
	}
}

func FilterByUser(userID int64) model.TransactionFilter {
	return model.TransactionFilter{UserID: &userID}
}

func FilterByType(userID int64, opType string) model.TransactionFilter {
	return model.TransactionFilter{UserID: &userID, Type: &opType}
}

func FilterActiveOnly(userID int64) model.TransactionFilter {
	return model.TransactionFilter{UserID: &userID, SkipExpired: true}
}
