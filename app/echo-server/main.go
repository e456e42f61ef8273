package main

import (
	"context"
	"fmt"
	"log"
	"loyaltyStamp/app/echo-server/router"
	"loyaltyStamp/business/benefits"
	"loyaltyStamp/business/qrcode"
	"loyaltyStamp/business/redemption"
	syncSvc "loyaltyStamp/business/sync"
	userService "loyaltyStamp/business/user"
	"loyaltyStamp/business/visits"
	"loyaltyStamp/internal/middleware"
	"loyaltyStamp/internal/repository/notification"
	psqlRepo "loyaltyStamp/internal/repository/postgres"
	redisRepo "loyaltyStamp/internal/repository/redis"
	"loyaltyStamp/internal/repository/remoteledger"
	"loyaltyStamp/internal/rest"
	"loyaltyStamp/pkg/config"
	"loyaltyStamp/pkg/database"
	redisdb "loyaltyStamp/pkg/database/redis"
	"loyaltyStamp/pkg/events"
	"loyaltyStamp/pkg/logger"
	"loyaltyStamp/pkg/metrics"
	"loyaltyStamp/pkg/utils"
	"loyaltyStamp/pkg/worker"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting LoyaltyStamp", "version", cfg.App.Version)

	utils.InitJWT(cfg.JWT.SecretKey)
	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	redisClient, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}

	logger.Info("Redis connected successfully")

	// Init notification from mailjet
	mailjetEmail := notification.NewMailjetRepository(
		notification.MailjetConfig{
			MailjetBaseURL:           cfg.Mailjet.MailjetBaseUrl,
			MailjetBasicAuthUsername: cfg.Mailjet.MailjetBasicAuthUsername,
			MailjetBasicAuthPassword: cfg.Mailjet.MailjetBasicAuthPassword,
			MailjetSenderEmail:       cfg.Mailjet.MailjetSenderEmail,
			MailjetSenderName:        cfg.Mailjet.MailjetSenderName,
		},
	)

	remoteLedger := remoteledger.NewLedgerRepository(
		remoteledger.LedgerConfig{
			BaseURL:           cfg.RemoteLedger.BaseURL,
			BasicAuthUsername: cfg.RemoteLedger.BasicAuthUsername,
			BasicAuthPassword: cfg.RemoteLedger.BasicAuthPassword,
			Timeout:           cfg.RemoteLedger.Timeout,
		},
	)

	// Init validate
	validate := validator.New()

	// Shared infrastructure
	bus := events.NewBus()
	pool := worker.New(cfg.Loyalty.WorkerPoolSize, cfg.Loyalty.WorkerQueueDepth)

	// Init repo
	userRepo := psqlRepo.NewUserRepository(db)
	visitRepo := psqlRepo.NewVisitRepository(db)
	benefitRepo := psqlRepo.NewBenefitRepository(db)
	redemptionLogRepo := psqlRepo.NewRedemptionLogRepository(db)
	sessionRepo := redisRepo.NewSessionRepository(redisClient)

	// Init service
	codec := qrcode.NewCodec(cfg.Loyalty.QRSecretKey)
	visitService := visits.NewService(visitRepo, bus)
	syncService := syncSvc.NewService(visitService, remoteLedger, cfg.RemoteLedger.Timeout)
	benefitService := benefits.NewService(benefitRepo, visitService, userRepo, mailjetEmail, bus, benefits.DefaultRules())
	redemptionService := redemption.NewService(sessionRepo, benefitService, visitService, redemptionLogRepo, bus, cfg.Loyalty.OTPValidity)
	userService := userService.NewUserService(userRepo, validate, mailjetEmail, cfg.App.AppEmailVerificationKey, cfg.App.AppDeploymentUrl)

	// Init handler
	userHandler := rest.NewUserHandler(userService)
	visitsHandler := rest.NewVisitsHandler(codec, visitService)
	benefitsHandler := rest.NewBenefitsHandler(benefitService, pool)
	redemptionsHandler := rest.NewRedemptionsHandler(redemptionService)
	syncHandler := rest.NewSyncHandler(syncService)
	codesHandler := rest.NewCodesHandler(codec)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupUserRoutes(api, userHandler)
	router.SetVisitsRoutes(api, visitsHandler)
	router.SetBenefitsRoutes(api, benefitsHandler)
	router.SetRedemptionsRoutes(api, redemptionsHandler)
	router.SetSyncRoutes(api, syncHandler)
	router.SetCodesRoutes(api, codesHandler)

	// Background sync sweeps
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	syncService.StartPeriodic(sweepCtx, cfg.Loyalty.SyncInterval, pool)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	stopSweeps()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Drain the queued background work
	if err := pool.Shutdown(ctx); err != nil {
		logger.Error("Worker pool shutdown error", "error", err)
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", "error", err)
	}

	logger.Info("Server stopped")
}
