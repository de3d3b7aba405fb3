package services

import (
	"context"
	"time"

	"github.com/coursebill/billing-api/internal/model"
)

type LedgerRepository interface {
	FindByFilter(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error)
	FindEndingRentals(ctx context.Context, userID int64, horizonDays int) ([]*model.EndingRental, error)
	FindPaidCoursesInWindow(ctx context.Context, start, end time.Time) ([]*model.CourseSales, error)
	FindOwnedCourses(ctx context.Context, userID int64) ([]*model.OwnedCourse, error)
}

// TransactionService answers read-only questions about the ledger. All
// writes go through PaymentService.
type TransactionService struct {
	repo LedgerRepository
}

func NewTransactionService(repo LedgerRepository) *TransactionService {
	return &TransactionService{repo: repo}
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	return s.repo.FindByFilter(ctx, f)
}

// EndingRentals lists the user's rentals that expire tomorrow.
func (s *TransactionService) EndingRentals(ctx context.Context, userID int64) ([]*model.EndingRental, error) {
	return s.repo.FindEndingRentals(ctx, userID, 1)
}

// MonthlySales aggregates paid courses over one calendar month, month
// boundaries taken in the business time zone.
func (s *TransactionService) MonthlySales(ctx context.Context, year int, month time.Month) ([]*model.CourseSales, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, model.RentalZone)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return s.repo.FindPaidCoursesInWindow(ctx, start, end)
}

func (s *TransactionService) OwnedCourses(ctx context.Context, userID int64) ([]*model.OwnedCourse, error) {
	return s.repo.FindOwnedCourses(ctx, userID)
}
