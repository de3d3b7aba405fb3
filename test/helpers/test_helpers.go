package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coursebill/billing-api/internal/repository"
	"github.com/coursebill/billing-api/pkg/pg"
	"github.com/coursebill/billing-api/pkg/redis"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.CourseEntity{},
		&repository.TransactionEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

// SetupTestRedis starts an in-process redis and wires an adapter to it.
// The adapter registry is keyed by connection name, so every test gets
// its own name to avoid sharing a client across tests.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, email string, balance int64, roles string) *repository.UserEntity {
	ctx := context.Background()
	user := &repository.UserEntity{
		Email:        email,
		PasswordHash: "x",
		Balance:      decimal.NewFromInt(balance),
		Roles:        roles,
	}
	err := db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestCourse(t *testing.T, db *pg.DB, code, title, courseType string, cost *int64) *repository.CourseEntity {
	ctx := context.Background()
	course := &repository.CourseEntity{
		Code:  code,
		Title: title,
		Type:  courseType,
	}
	if cost != nil {
		course.Cost = decimal.NewNullDecimal(decimal.NewFromInt(*cost))
	}
	err := db.Write(ctx).Create(course).Error
	require.NoError(t, err)
	return course
}

func CreateTestTransaction(t *testing.T, db *pg.DB, userID int64, opType string, value int64, courseID *int64, expiresAt *time.Time) *repository.TransactionEntity {
	ctx := context.Background()
	txn := &repository.TransactionEntity{
		UserID:         userID,
		Type:           opType,
		Value:          decimal.NewFromInt(value),
		CourseID:       courseID,
		PeriodValidity: expiresAt,
		CreatedAt:      time.Now(),
	}
	err := db.Write(ctx).Create(txn).Error
	require.NoError(t, err)
	return txn
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
