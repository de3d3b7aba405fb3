package repository

import (
	"context"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/pkg/pg"
)

// TransactionRepository appends to and reads the ledger. There are no
// update or delete methods: the log is append-only by construction.
type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// FindByFilter returns ledger rows matching every supplied predicate,
// in insertion (id ascending) order. Rows without a course never match a
// course-code filter; rows without a rental period never survive
// SkipExpired.
func (r *TransactionRepository) FindByFilter(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	q := r.Read(ctx).WithContext(ctx).
		Table("transactions AS t").
		Select(`t.id, t.user_id, t.type, t.value, t.course_id,
			c.code AS course_code, t.period_validity, t.created_at`).
		Joins("LEFT JOIN courses AS c ON c.id = t.course_id")

	if f.UserID != nil {
		q = q.Where("t.user_id = ?", *f.UserID)
	}
	if f.Type != nil {
		q = q.Where("t.type = ?", *f.Type)
	}
	if f.CourseCode != nil {
		q = q.Where("c.code = ?", *f.CourseCode)
	}
	if f.SkipExpired {
		q = q.Where("t.period_validity > ?", time.Now())
	}

	var entities []*ledgerRowEntity
	if err := q.Order("t.id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}

	return toLedgerRowModels(entities), nil
}

// FindEndingRentals returns the user's rented courses whose rental
// period ends on the calendar day horizonDays from now, day boundaries
// taken in the business time zone.
func (r *TransactionRepository) FindEndingRentals(ctx context.Context, userID int64, horizonDays int) ([]*model.EndingRental, error) {
	now := time.Now().In(model.RentalZone)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, model.RentalZone).
		AddDate(0, 0, horizonDays)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var rows []*model.EndingRental
	err := r.Read(ctx).WithContext(ctx).
		Table("transactions AS t").
		Select("c.code AS course_code, c.title AS course_title, t.period_validity").
		Joins("JOIN courses AS c ON c.id = t.course_id").
		Where("t.user_id = ?", userID).
		Where("t.type = ?", model.OperationPayment).
		Where("c.type = ?", string(model.CourseTypeRent)).
		Where("t.period_validity >= ? AND t.period_validity < ?", dayStart, dayEnd).
		Order("t.period_validity ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// FindPaidCoursesInWindow aggregates payment transactions created inside
// [start, end] into one row per course title: how many times the course
// was paid for and the total amount paid.
func (r *TransactionRepository) FindPaidCoursesInWindow(ctx context.Context, start, end time.Time) ([]*model.CourseSales, error) {
	var rows []*model.CourseSales
	err := r.Read(ctx).WithContext(ctx).
		Table("transactions AS t").
		Select(`c.title AS title, c.type AS type,
			COUNT(t.id) AS count, SUM(t.value) AS sum`).
		Joins("JOIN courses AS c ON c.id = t.course_id").
		Where("t.type = ?", model.OperationPayment).
		Where("t.created_at >= ? AND t.created_at <= ?", start, end).
		Group("c.title, c.type").
		Order("c.title ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// FindOwnedCourses lists the courses the user currently has access to:
// bought courses unconditionally, rented ones while the period runs.
func (r *TransactionRepository) FindOwnedCourses(ctx context.Context, userID int64) ([]*model.OwnedCourse, error) {
	var rows []*model.OwnedCourse
	err := r.Read(ctx).WithContext(ctx).
		Table("transactions AS t").
		Select(`c.code AS code, c.title AS title, c.type AS type,
			COALESCE(c.cost, 0) AS cost, t.period_validity AS expires_at`).
		Joins("JOIN courses AS c ON c.id = t.course_id").
		Where("t.user_id = ?", userID).
		Where("t.type = ?", model.OperationPayment).
		Where("c.type <> ? OR t.period_validity > ?", string(model.CourseTypeRent), time.Now()).
		Order("t.id ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
