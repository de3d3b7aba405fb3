package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coursebill/billing-api/internal/config"
	"github.com/coursebill/billing-api/internal/handlers"
	"github.com/coursebill/billing-api/internal/repository"
	"github.com/coursebill/billing-api/internal/services"
	xhttp "github.com/coursebill/billing-api/pkg/http"
	"github.com/coursebill/billing-api/pkg/logger"
	"github.com/coursebill/billing-api/pkg/pg"
	"github.com/coursebill/billing-api/pkg/prom"
	"github.com/coursebill/billing-api/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
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

	// repositories
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db, redisAdap)
	transactionRepo := repository.NewTransactionRepository(db)

	// services
	authService := services.NewAuthService(userRepo, config.Get().JWTSecret, config.Get().JWTTokenTTL)
	courseService := services.NewCourseService(courseRepo)
	paymentService := services.NewPaymentService(userRepo, transactionRepo, courseRepo)
	transactionService := services.NewTransactionService(transactionRepo)
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	auth := handlers.NewAuthMiddleware(authService)
	authHandler := handlers.NewAuthHandler(authService, transactionService)
	courseHandler := handlers.NewCourseHandler(courseService, paymentService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, paymentService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterAuthRoutes(g, authHandler, auth)
	handlers.RegisterCourseRoutes(g, courseHandler, auth)
	handlers.RegisterTransactionRoutes(g, transactionHandler, auth)
	handlers.RegisterHealthRoutes(g, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	if config.Get().AppDebugMetricsAddr != "" {
		go func() {
			prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
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
	return ""
}
