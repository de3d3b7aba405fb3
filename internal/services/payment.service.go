package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/repository"
	"github.com/coursebill/billing-api/pkg/prom"
	"github.com/shopspring/decimal"
)

// RentalPeriodDays is how long a rent payment keeps the course open.
const RentalPeriodDays = 7

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrUserNotFound        = errors.New("user not found")
	ErrCourseNotFound      = errors.New("course not found")
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) (*model.User, error)
	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
}

type CourseGetter interface {
	GetByCode(ctx context.Context, code string) (*model.Course, error)
}

// PaymentService is the only writer of balances and ledger rows. Every
// operation runs inside a single database transaction so the balance
// and the ledger can never diverge.
type PaymentService struct {
	userRepo UserRepository
	txnRepo  TransactionRepository
	courses  CourseGetter
}

func NewPaymentService(userRepo UserRepository, txnRepo TransactionRepository, courses CourseGetter) *PaymentService {
	return &PaymentService{
		userRepo: userRepo,
		txnRepo:  txnRepo,
		courses:  courses,
	}
}

// Deposit credits the user's balance and appends a deposit row.
func (s *PaymentService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	var created *model.Transaction
	err := s.userRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.userRepo.CreditBalance(ctx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("credit balance: %w", err)
		}

		txn, err := s.txnRepo.Create(ctx, &model.Transaction{
			UserID:    userID,
			Type:      model.OperationDeposit,
			Value:     amount,
			CreatedAt: time.Now(),
		})
		if err != nil {
			// Transaction will auto-rollback, reverting the credit
			return fmt.Errorf("create transaction: %w", err)
		}

		created = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncDepositProcessed()
	return created, nil
}

// Pay charges the user the course price and appends a payment row. Rent
// payments carry the expiry of the rental period; free courses produce
// a zero-value row so ownership still shows up in the ledger.
func (s *PaymentService) Pay(ctx context.Context, userID int64, courseCode string) (*model.Transaction, error) {
	course, err := s.courses.GetByCode(ctx, courseCode)
	if err != nil {
		if errors.Is(err, repository.ErrCourseNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	price := course.Price()

	var expiry *time.Time
	if course.Type == model.CourseTypeRent {
		t := time.Now().In(model.RentalZone).AddDate(0, 0, RentalPeriodDays)
		expiry = &t
	}

	var created *model.Transaction
	err = s.userRepo.WithinTransaction(ctx, func(ctx context.Context) error {
		// Debit first: the row lock serializes concurrent payments and
		// fails fast on insufficient funds.
		if err := s.userRepo.DebitBalance(ctx, userID, price); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("debit balance: %w", err)
		}

		txn, err := s.txnRepo.Create(ctx, &model.Transaction{
			UserID:         userID,
			Type:           model.OperationPayment,
			Value:          price,
			CourseID:       &course.ID,
			CourseCode:     &course.Code,
			PeriodValidity: expiry,
			CreatedAt:      time.Now(),
		})
		if err != nil {
			// Transaction will auto-rollback, refunding the balance
			return fmt.Errorf("create transaction: %w", err)
		}

		created = txn
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			prom.IncPaymentFailure("insufficient_balance")
		}
		return nil, err
	}

	created.CourseCode = &course.Code
	prom.IncPaymentProcessed(string(course.Type))
	return created, nil
}
