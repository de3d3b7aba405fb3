package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/coursebill/billing-api/internal/config"
	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/queue"
	"github.com/coursebill/billing-api/internal/repository"
	"github.com/coursebill/billing-api/internal/services"
	"github.com/coursebill/billing-api/pkg/logger"
	"github.com/coursebill/billing-api/pkg/pg"
	"github.com/coursebill/billing-api/pkg/redis"
)

// Run-once jobs meant to be driven by cron:
//
//	reporter --job=ending-rentals
//	reporter --job=monthly-report [--month=2026-08]
func main() {

	err := config.Load(argValue("--env="))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	job := argValue("--job=")
	if job == "" {
		logger.Error("no job given, expected --job=ending-rentals or --job=monthly-report")
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	db, err := pg.CreateReadWrite(readConf, writeConf, config.Get().AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	userRepo := repository.NewUserRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	notifications := services.NewNotificationService(userRepo, transactionRepo, q, config.Get().ReportRecipient)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch job {
	case "ending-rentals":
		count, err := notifications.EnqueueRentalReminders(ctx)
		if err != nil {
			logger.Error("ending-rentals job failed", "error", err)
			return
		}
		logger.Info("ending-rentals job done", "reminders", count)

	case "monthly-report":
		year, month := reportMonth(argValue("--month="))
		if err := notifications.EnqueueMonthlyReport(ctx, year, month); err != nil {
			logger.Error("monthly-report job failed", "error", err)
			return
		}
		logger.Info("monthly-report job done", "year", year, "month", int(month))

	default:
		logger.Error("unknown job", "job", job)
	}
}

// reportMonth parses --month=YYYY-MM, defaulting to the previous calendar
// month in the business time zone.
func reportMonth(arg string) (int, time.Month) {
	if arg != "" {
		if t, err := time.ParseInLocation("2006-01", arg, model.RentalZone); err == nil {
			return t.Year(), t.Month()
		}
		logger.Warn("invalid --month value, falling back to previous month", "value", arg)
	}
	now := time.Now().In(model.RentalZone)
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, model.RentalZone).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

func argValue(prefix string) string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return ""
}
