package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coursebill/billing-api/internal/model"
)

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) FindByFilter(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) FindEndingRentals(ctx context.Context, userID int64, horizonDays int) ([]*model.EndingRental, error) {
	args := m.Called(ctx, userID, horizonDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.EndingRental), args.Error(1)
}

func (m *MockLedgerRepository) FindPaidCoursesInWindow(ctx context.Context, start, end time.Time) ([]*model.CourseSales, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CourseSales), args.Error(1)
}

func (m *MockLedgerRepository) FindOwnedCourses(ctx context.Context, userID int64) ([]*model.OwnedCourse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OwnedCourse), args.Error(1)
}

type MockUserLister struct {
	mock.Mock
}

func (m *MockUserLister) List(ctx context.Context) ([]*model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

type capturingPublisher struct {
	published []model.EmailNotification
	err       error
}

func (p *capturingPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, data.(model.EmailNotification))
	return "1-0", nil
}

func TestNotificationService_EnqueueRentalReminders(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2026, 9, 2, 12, 0, 0, 0, model.RentalZone)

	users := &MockUserLister{}
	ledger := &MockLedgerRepository{}
	publisher := &capturingPublisher{}

	users.On("List", ctx).Return([]*model.User{
		{ID: 1, Email: "one@example.com"},
		{ID: 2, Email: "two@example.com"},
	}, nil)
	ledger.On("FindEndingRentals", ctx, int64(1), 1).Return([]*model.EndingRental{
		{CourseCode: "sport-manager", CourseTitle: "Sport-Manager", PeriodValidity: expires},
	}, nil)
	ledger.On("FindEndingRentals", ctx, int64(2), 1).Return([]*model.EndingRental{}, nil)

	service := NewNotificationService(users, ledger, publisher, "reports@example.com")

	count, err := service.EnqueueRentalReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, publisher.published, 1)

	notification := publisher.published[0]
	assert.Equal(t, "rental-reminder:1:sport-manager:2026-09-02", notification.ID)
	assert.Equal(t, model.NotificationRentalReminder, notification.Kind)
	assert.Equal(t, "one@example.com", notification.To)
	assert.Contains(t, notification.Subject, "Sport-Manager")
	assert.Contains(t, notification.Body, "2026-09-02")
}

func TestNotificationService_EnqueueRentalReminders_SameIDOnRerun(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2026, 9, 2, 12, 0, 0, 0, model.RentalZone)

	users := &MockUserLister{}
	ledger := &MockLedgerRepository{}
	publisher := &capturingPublisher{}

	users.On("List", ctx).Return([]*model.User{{ID: 7, Email: "u@example.com"}}, nil)
	ledger.On("FindEndingRentals", ctx, int64(7), 1).Return([]*model.EndingRental{
		{CourseCode: "web-designer", CourseTitle: "Web-Designer", PeriodValidity: expires},
	}, nil)

	service := NewNotificationService(users, ledger, publisher, "reports@example.com")

	_, err := service.EnqueueRentalReminders(ctx)
	require.NoError(t, err)
	_, err = service.EnqueueRentalReminders(ctx)
	require.NoError(t, err)

	require.Len(t, publisher.published, 2)
	assert.Equal(t, publisher.published[0].ID, publisher.published[1].ID)
}

func TestNotificationService_EnqueueMonthlyReport(t *testing.T) {
	ctx := context.Background()

	users := &MockUserLister{}
	ledger := &MockLedgerRepository{}
	publisher := &capturingPublisher{}

	ledger.On("FindPaidCoursesInWindow", ctx,
		mock.MatchedBy(func(start time.Time) bool {
			return start.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, model.RentalZone))
		}),
		mock.MatchedBy(func(end time.Time) bool {
			return end.Before(time.Date(2026, 9, 1, 0, 0, 0, 0, model.RentalZone))
		}),
	).Return([]*model.CourseSales{
		{Title: "Internet-Marketer", Type: model.CourseTypeBuy, Count: 2, Sum: decimal.NewFromInt(1000)},
		{Title: "Sport-Manager", Type: model.CourseTypeRent, Count: 3, Sum: decimal.NewFromInt(900)},
	}, nil)

	service := NewNotificationService(users, ledger, publisher, "reports@example.com")

	err := service.EnqueueMonthlyReport(ctx, 2026, time.August)
	require.NoError(t, err)
	require.Len(t, publisher.published, 1)

	notification := publisher.published[0]
	assert.Equal(t, "monthly-report:2026-08", notification.ID)
	assert.Equal(t, model.NotificationMonthlyReport, notification.Kind)
	assert.Equal(t, "reports@example.com", notification.To)
	assert.Contains(t, notification.Body, "Internet-Marketer|buy|2|1000.00")
	assert.Contains(t, notification.Body, "Sport-Manager|rent|3|900.00")
	assert.Contains(t, notification.Body, "Total: 1900.00")
}

func TestNotificationService_EnqueueMonthlyReport_NoRecipient(t *testing.T) {
	service := NewNotificationService(&MockUserLister{}, &MockLedgerRepository{}, &capturingPublisher{}, "")

	err := service.EnqueueMonthlyReport(context.Background(), 2026, time.August)
	assert.Error(t, err)
}

func TestTransactionService_MonthlySales_Window(t *testing.T) {
	ctx := context.Background()
	ledger := &MockLedgerRepository{}

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, model.RentalZone)
	ledger.On("FindPaidCoursesInWindow", ctx,
		mock.MatchedBy(func(got time.Time) bool { return got.Equal(start) }),
		mock.MatchedBy(func(got time.Time) bool {
			// window ends just before March 1st
			return got.After(time.Date(2026, 2, 28, 23, 59, 59, 0, model.RentalZone)) &&
				got.Before(time.Date(2026, 3, 1, 0, 0, 0, 0, model.RentalZone))
		}),
	).Return([]*model.CourseSales{}, nil)

	service := NewTransactionService(ledger)

	sales, err := service.MonthlySales(ctx, 2026, time.February)
	require.NoError(t, err)
	assert.Empty(t, sales)
	ledger.AssertExpectations(t)
}
