package repository

import (
	"context"
	"testing"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T {
	return &v
}

func seedCourse(t *testing.T, repo *CourseRepository, code, title string, kind model.CourseType, cost int64) *model.Course {
	t.Helper()
	c := &model.Course{
		Code:  code,
		Title: title,
		Type:  kind,
	}
	if kind != model.CourseTypeFree {
		c.Cost = decimal.NewFromInt(cost)
		c.HasCost = true
	}
	created, err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	return created
}

func TestTransactionRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("create deposit", func(t *testing.T) {
		txn := &model.Transaction{
			UserID:    1,
			Type:      model.OperationDeposit,
			Value:     decimal.NewFromInt(500),
			CreatedAt: time.Now(),
		}

		created, err := repo.Create(ctx, txn)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, model.OperationDeposit, created.Type)
		assert.Nil(t, created.CourseID)
		assert.Nil(t, created.PeriodValidity)
	})

	t.Run("create rent payment with expiry", func(t *testing.T) {
		expiry := time.Now().In(model.RentalZone).AddDate(0, 0, 7)
		txn := &model.Transaction{
			UserID:         1,
			Type:           model.OperationPayment,
			Value:          decimal.NewFromInt(300),
			CourseID:       ptr(int64(1)),
			PeriodValidity: &expiry,
			CreatedAt:      time.Now(),
		}

		created, err := repo.Create(ctx, txn)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		require.NotNil(t, created.PeriodValidity)
		assert.WithinDuration(t, expiry, *created.PeriodValidity, time.Second)
	})
}

func TestTransactionRepository_FindByFilter(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	courses := NewCourseRepository(db, nil)
	ctx := context.Background()

	rent := seedCourse(t, courses, "sport-manager", "Sport Manager", model.CourseTypeRent, 300)
	buy := seedCourse(t, courses, "internet-marketer", "Internet Marketer", model.CourseTypeBuy, 500)

	now := time.Now()
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 7)

	seed := []*model.Transaction{
		{UserID: 1, Type: model.OperationDeposit, Value: decimal.NewFromInt(1000), CreatedAt: now},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, PeriodValidity: &past, CreatedAt: now},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, PeriodValidity: &future, CreatedAt: now},
		{UserID: 2, Type: model.OperationPayment, Value: decimal.NewFromInt(500), CourseID: &buy.ID, CreatedAt: now},
	}
	for _, txn := range seed {
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	t.Run("no filter returns everything in insertion order", func(t *testing.T) {
		rows, err := repo.FindByFilter(ctx, model.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 4)
		for i := 1; i < len(rows); i++ {
			assert.Greater(t, rows[i].ID, rows[i-1].ID)
		}
	})

	t.Run("filter by user", func(t *testing.T) {
		rows, err := repo.FindByFilter(ctx, model.TransactionFilter{UserID: ptr(int64(1))})
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("filter by type", func(t *testing.T) {
		rows, err := repo.FindByFilter(ctx, model.TransactionFilter{Type: ptr(model.OperationDeposit)})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].CourseCode)
	})

	t.Run("filter by course code carries the code", func(t *testing.T) {
		rows, err := repo.FindByFilter(ctx, model.TransactionFilter{CourseCode: ptr("sport-manager")})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, row := range rows {
			require.NotNil(t, row.CourseCode)
			assert.Equal(t, "sport-manager", *row.CourseCode)
		}
	})

	t.Run("skip expired drops past rentals and deposits", func(t *testing.T) {
		rows, err := repo.FindByFilter(ctx, model.TransactionFilter{
			UserID:      ptr(int64(1)),
			SkipExpired: true,
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.NotNil(t, rows[0].PeriodValidity)
		assert.True(t, rows[0].PeriodValidity.After(now))
	})

	t.Run("combined filters", func(t *testing.T) {
		rows, err := repo.FindByFilter(ctx, model.TransactionFilter{
			UserID:     ptr(int64(2)),
			Type:       ptr(model.OperationPayment),
			CourseCode: ptr("internet-marketer"),
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Value.Equal(decimal.NewFromInt(500)))
	})
}

func TestTransactionRepository_FindEndingRentals(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	courses := NewCourseRepository(db, nil)
	ctx := context.Background()

	rent := seedCourse(t, courses, "sport-manager", "Sport Manager", model.CourseTypeRent, 300)
	buy := seedCourse(t, courses, "internet-marketer", "Internet Marketer", model.CourseTypeBuy, 500)

	now := time.Now().In(model.RentalZone)
	tomorrowNoon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, model.RentalZone).AddDate(0, 0, 1)
	nextWeek := now.AddDate(0, 0, 7)

	seed := []*model.Transaction{
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, PeriodValidity: &tomorrowNoon, CreatedAt: now},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, PeriodValidity: &nextWeek, CreatedAt: now},
		{UserID: 2, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, PeriodValidity: &tomorrowNoon, CreatedAt: now},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(500), CourseID: &buy.ID, CreatedAt: now},
	}
	for _, txn := range seed {
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	t.Run("only tomorrow's rentals of the user", func(t *testing.T) {
		rows, err := repo.FindEndingRentals(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "sport-manager", rows[0].CourseCode)
		assert.Equal(t, "Sport Manager", rows[0].CourseTitle)
		assert.WithinDuration(t, tomorrowNoon, rows[0].PeriodValidity, time.Second)
	})

	t.Run("no rentals ending at the horizon", func(t *testing.T) {
		rows, err := repo.FindEndingRentals(ctx, 1, 3)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestTransactionRepository_FindPaidCoursesInWindow(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	courses := NewCourseRepository(db, nil)
	ctx := context.Background()

	rent := seedCourse(t, courses, "sport-manager", "Sport Manager", model.CourseTypeRent, 300)
	buy := seedCourse(t, courses, "internet-marketer", "Internet Marketer", model.CourseTypeBuy, 500)

	inWindow := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2026, 7, 2, 12, 0, 0, 0, time.UTC)

	seed := []*model.Transaction{
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, CreatedAt: inWindow},
		{UserID: 2, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, CreatedAt: inWindow},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(500), CourseID: &buy.ID, CreatedAt: inWindow},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, CreatedAt: outOfWindow},
		{UserID: 1, Type: model.OperationDeposit, Value: decimal.NewFromInt(1000), CreatedAt: inWindow},
	}
	for _, txn := range seed {
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)

	rows, err := repo.FindPaidCoursesInWindow(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Ordered by title: Internet Marketer before Sport Manager.
	assert.Equal(t, "Internet Marketer", rows[0].Title)
	assert.Equal(t, int64(1), rows[0].Count)
	assert.True(t, rows[0].Sum.Equal(decimal.NewFromInt(500)))

	assert.Equal(t, "Sport Manager", rows[1].Title)
	assert.Equal(t, int64(2), rows[1].Count)
	assert.True(t, rows[1].Sum.Equal(decimal.NewFromInt(600)))
}

func TestTransactionRepository_FindOwnedCourses(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewTransactionRepository(db)
	courses := NewCourseRepository(db, nil)
	ctx := context.Background()

	rent := seedCourse(t, courses, "sport-manager", "Sport Manager", model.CourseTypeRent, 300)
	buy := seedCourse(t, courses, "internet-marketer", "Internet Marketer", model.CourseTypeBuy, 500)
	free := seedCourse(t, courses, "web-designer", "Web Designer", model.CourseTypeFree, 0)

	now := time.Now()
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 7)

	seed := []*model.Transaction{
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, PeriodValidity: &past, CreatedAt: now},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.NewFromInt(500), CourseID: &buy.ID, CreatedAt: now},
		{UserID: 1, Type: model.OperationPayment, Value: decimal.Zero, CourseID: &free.ID, CreatedAt: now},
		{UserID: 2, Type: model.OperationPayment, Value: decimal.NewFromInt(300), CourseID: &rent.ID, PeriodValidity: &future, CreatedAt: now},
	}
	for _, txn := range seed {
		_, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	t.Run("expired rental excluded, bought and free kept", func(t *testing.T) {
		rows, err := repo.FindOwnedCourses(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "internet-marketer", rows[0].Code)
		assert.True(t, rows[0].Cost.Equal(decimal.NewFromInt(500)))
		assert.Nil(t, rows[0].ExpiresAt)
		assert.Equal(t, "web-designer", rows[1].Code)
	})

	t.Run("active rental kept with expiry", func(t *testing.T) {
		rows, err := repo.FindOwnedCourses(ctx, 2)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "sport-manager", rows[0].Code)
		require.NotNil(t, rows[0].ExpiresAt)
		assert.WithinDuration(t, future, *rows[0].ExpiresAt, time.Second)
	})
}

func TestTransactionEntity_UserCascadeDelete(t *testing.T) {
	// Plain :memory: keeps sqlite FK enforcement off; this test needs it on.
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=1"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&UserEntity{}, &CourseEntity{}, &TransactionEntity{}))

	user := &UserEntity{
		Email:        "cascade@example.com",
		PasswordHash: "hash",
		Balance:      decimal.NewFromInt(100),
	}
	require.NoError(t, db.Create(user).Error)

	for _, value := range []int64{100, 40} {
		txn := &TransactionEntity{
			UserID:    user.ID,
			Type:      model.OperationDeposit,
			Value:     decimal.NewFromInt(value),
			CreatedAt: time.Now(),
		}
		require.NoError(t, db.Create(txn).Error)
	}

	require.NoError(t, db.Exec("DELETE FROM users WHERE id = ?", user.ID).Error)

	var count int64
	require.NoError(t, db.Model(&TransactionEntity{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}
