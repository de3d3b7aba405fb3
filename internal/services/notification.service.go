package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// NotificationPublisher pushes notifications onto the mail queue.
type NotificationPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type UserLister interface {
	List(ctx context.Context) ([]*model.User, error)
}

// NotificationService builds email notifications from the ledger and hands
// them to the queue. Delivery itself is the notifier's job.
type NotificationService struct {
	users     UserLister
	ledger    LedgerRepository
	publisher NotificationPublisher
	reportTo  string
}

func NewNotificationService(users UserLister, ledger LedgerRepository, publisher NotificationPublisher, reportTo string) *NotificationService {
	return &NotificationService{
		users:     users,
		ledger:    ledger,
		publisher: publisher,
		reportTo:  reportTo,
	}
}

// EnqueueRentalReminders publishes one reminder per user whose rentals end
// tomorrow. Notification IDs are derived from user, course and expiry date,
// so running the job twice on the same day publishes the same IDs and the
// consumer drops the duplicates.
func (s *NotificationService) EnqueueRentalReminders(ctx context.Context) (int, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	published := 0
	for _, user := range users {
		rentals, err := s.ledger.FindEndingRentals(ctx, user.ID, 1)
		if err != nil {
			logger.Error("Failed to load ending rentals", "user_id", user.ID, "error", err)
			continue
		}
		if len(rentals) == 0 {
			continue
		}

		for _, rental := range rentals {
			expires := rental.PeriodValidity.In(model.RentalZone)
			notification := model.EmailNotification{
				ID:        fmt.Sprintf("rental-reminder:%d:%s:%s", user.ID, rental.CourseCode, expires.Format("2006-01-02")),
				Kind:      model.NotificationRentalReminder,
				To:        user.Email,
				Subject:   fmt.Sprintf("Your rental of %q ends soon", rental.CourseTitle),
				Body:      rentalReminderBody(rental, expires),
				CreatedAt: time.Now(),
			}

			if _, err := s.publisher.PublishJSON(ctx, notification, map[string]string{"kind": string(notification.Kind)}); err != nil {
				logger.Error("Failed to publish rental reminder", "notification_id", notification.ID, "error", err)
				continue
			}
			published++
		}
	}

	logger.Info("Rental reminders enqueued", "count", published)
	return published, nil
}

// EnqueueMonthlyReport publishes the paid-courses report for one calendar
// month to the configured report recipient.
func (s *NotificationService) EnqueueMonthlyReport(ctx context.Context, year int, month time.Month) error {
	if s.reportTo == "" {
		return fmt.Errorf("report recipient is not configured")
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, model.RentalZone)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	sales, err := s.ledger.FindPaidCoursesInWindow(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load monthly sales: %w", err)
	}

	notification := model.EmailNotification{
		ID:        fmt.Sprintf("monthly-report:%04d-%02d", year, int(month)),
		Kind:      model.NotificationMonthlyReport,
		To:        s.reportTo,
		Subject:   fmt.Sprintf("Paid courses report for %04d-%02d", year, int(month)),
		Body:      monthlyReportBody(sales),
		CreatedAt: time.Now(),
	}

	if _, err := s.publisher.PublishJSON(ctx, notification, map[string]string{"kind": string(notification.Kind)}); err != nil {
		return fmt.Errorf("publish monthly report: %w", err)
	}

	logger.Info("Monthly report enqueued", "notification_id", notification.ID, "lines", len(sales))
	return nil
}

func rentalReminderBody(rental *model.EndingRental, expires time.Time) string {
	return fmt.Sprintf(
		"Your rental of the course %q (%s) ends on %s. Renew it to keep access.",
		rental.CourseTitle, rental.CourseCode, expires.Format("2006-01-02 15:04"),
	)
}

func monthlyReportBody(sales []*model.CourseSales) string {
	if len(sales) == 0 {
		return "No courses were paid for in this period."
	}

	var b strings.Builder
	b.WriteString("Paid courses:\n")
	total := decimal.Zero
	for _, line := range sales {
		fmt.Fprintf(&b, "%s|%s|%d|%s\n", line.Title, line.Type, line.Count, line.Sum.StringFixed(2))
		total = total.Add(line.Sum)
	}
	fmt.Fprintf(&b, "Total: %s\n", total.StringFixed(2))
	return b.String()
}
