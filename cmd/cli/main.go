package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursebill/billing-api/internal/config"
	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/repository"
	"github.com/coursebill/billing-api/internal/services"
	"github.com/coursebill/billing-api/pkg/logger"
	"github.com/coursebill/billing-api/pkg/pg"
)

func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}
	// main.go --dir=./migrations [--seed]
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	err = pg.Migrate(pgConf, getMigrationPath())
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
		return
	}

	if hasArg("--seed") {
		if err := seed(pgConf); err != nil {
			logger.Error("seed: error loading fixtures", "error", err)
		}
	}
}

type seedCourse struct {
	code  string
	title string
	typ   model.CourseType
	cost  int64
}

// seed loads the demo catalog and two accounts, skipping rows that
// already exist so it can run repeatedly against the same database.
func seed(pgConf pg.Config) error {
	db, err := pg.CreateReadWrite(pgConf, pgConf, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db, nil)
	transactionRepo := repository.NewTransactionRepository(db)
	payments := services.NewPaymentService(userRepo, transactionRepo, courseRepo)

	courses := []seedCourse{
		{"Introduction-to-Data-Analysis-and-Machine-Learning", "Introduction to data analysis and machine learning", model.CourseTypeRent, 100},
		{"Sport-Manager", "Sport manager", model.CourseTypeRent, 300},
		{"Business-Analyst", "Business analyst", model.CourseTypeRent, 50},
		{"Sketching-Basics", "Sketching basics", model.CourseTypeRent, 275},
		{"Web-Designer", "Web designer", model.CourseTypeFree, 0},
		{"Protection-of-rights", "Registration and protection of intellectual property rights", model.CourseTypeFree, 0},
		{"Internet-Marketer", "Internet marketer from scratch", model.CourseTypeBuy, 500},
		{"Adobe-Photoshop", "Adobe Photoshop basics", model.CourseTypeBuy, 350},
		{"Financial-management", "Effective personal finance management", model.CourseTypeBuy, 50},
	}

	for _, c := range courses {
		if _, err := courseRepo.GetByCode(ctx, c.code); err == nil {
			continue
		}
		course := &model.Course{Code: c.code, Title: c.title, Type: c.typ}
		if c.typ != model.CourseTypeFree {
			course.Cost = decimal.NewFromInt(c.cost)
			course.HasCost = true
		}
		if _, err := courseRepo.Create(ctx, course); err != nil {
			return err
		}
		logger.Info("seed: course created", "code", c.code)
	}

	accounts := []struct {
		email    string
		password string
		roles    []string
	}{
		{"test@gmail.com", "general_user", []string{model.RoleUser}},
		{"admin@gmail.com", "super_admin", []string{model.RoleUser, model.RoleAdmin}},
	}

	deposit := decimal.NewFromInt(config.Get().SeedDepositAmount)
	for _, a := range accounts {
		if _, err := userRepo.GetByEmail(ctx, a.email); err == nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user, err := userRepo.Create(ctx, &model.User{
			Email:        a.email,
			PasswordHash: string(hash),
			Balance:      decimal.Zero,
			Roles:        a.roles,
		})
		if err != nil {
			return err
		}
		if _, err := payments.Deposit(ctx, user.ID, deposit); err != nil {
			return err
		}
		logger.Info("seed: account created", "email", a.email)
	}

	return nil
}

func hasArg(flag string) bool {
	for _, v := range os.Args {
		if v == flag {
			return true
		}
	}
	return false
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open(".env"); err != nil {
		logger.Error("failed to open the passed env file, got error" + err.Error())
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open("./migrations"); err != nil {
		logger.Error("failed to open the passed env file, got error" + err.Error())
		return ""
	}
	return "./migrations"
}
