package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netmon/pkg/alerts"
	"netmon/pkg/api"
	"netmon/pkg/broadcast"
	"netmon/pkg/config"
	"netmon/pkg/database"
	"netmon/pkg/datawriter"
	"netmon/pkg/executor"
	"netmon/pkg/fleet"
	"netmon/pkg/health"
	"netmon/pkg/models"
	"netmon/pkg/scheduler"
	"netmon/pkg/session"

	"github.com/gin-gonic/gin"
)

func main() {
	// ══════════════════════════════════════════════════════════════
	// STRUCTURED LOGGING
	// ══════════════════════════════════════════════════════════════
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ══════════════════════════════════════════════════════════════
	// CONFIGURATION
	// ══════════════════════════════════════════════════════════════
	conf, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Config loaded",
		"server_address", conf.ServerAddress,
		"fleet_concurrency", conf.FleetConcurrency,
		"scheduler_interval", conf.SchedulerIntervalSecond)

	// Initialize Auth Service
	auth := api.Auth(conf)

	// ══════════════════════════════════════════════════════════════
	// DATABASE
	// ══════════════════════════════════════════════════════════════
	db, err := database.Connect(conf)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	credRepo := database.NewGormRepository[models.CredentialProfile](db)
	passRepo := database.NewGormRepository[models.FleetPass](db)
	deviceStore := database.NewDeviceStore(db)
	resultStore := database.NewResultStore(db)
	alertStore := database.NewAlertStore(db)

	// ══════════════════════════════════════════════════════════════
	// SERVICES
	// ══════════════════════════════════════════════════════════════
	broadcaster := broadcast.New(conf.BroadcastBufferSize)

	resolver := database.NewCredentialResolver(credRepo, conf.EncryptionKey)
	dialer := session.NewDialer(resolver,
		time.Duration(conf.ConnectTimeoutSeconds)*time.Second,
		time.Duration(conf.CommandTimeoutSeconds)*time.Second)

	open := func(ctx context.Context, device *models.Device) (fleet.Session, error) {
		sess, err := dialer.Open(ctx, device)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	records := make(chan *fleet.PassRecord, 8)
	runner := fleet.NewRunner(open, executor.New(),
		conf.FleetConcurrency,
		time.Duration(conf.PassDeadlineSeconds)*time.Second,
		broadcaster, records)

	evaluator := alerts.NewEvaluator(alertStore, broadcaster, conf.AlertOnCommandFailure)
	tracker := health.NewTracker(deviceStore,
		time.Duration(conf.FailureWindowMinutes)*time.Minute,
		conf.FailureThreshold)

	writer := datawriter.NewWriter(passRepo, resultStore.GormRepository, records,
		tracker, datawriter.ObserverFunc(evaluator.EvaluatePass))

	runPass := func(ctx context.Context, trigger string, commands []string) {
		devices, err := deviceStore.ListEligible(ctx)
		if err != nil {
			slog.Error("Failed to list eligible devices", "error", err)
			return
		}
		if len(commands) == 0 {
			commands = conf.FleetCommands
		}
		runner.RunPass(ctx, devices, commands, trigger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(ctx, time.Duration(conf.SchedulerIntervalSecond)*time.Second, runPass)

	// ══════════════════════════════════════════════════════════════
	// START SERVICES
	// ══════════════════════════════════════════════════════════════
	// The writer outlives the signal context: it is stopped last, after
	// the scheduler has drained, so the final pass record is persisted.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		writer.Run(writerCtx)
		close(writerDone)
	}()

	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// ══════════════════════════════════════════════════════════════
	// ROUTER SETUP
	// ══════════════════════════════════════════════════════════════
	api.RegisterValidators()
	router := gin.Default()
	router.Use(api.SecurityHeaders())

	// Public routes (no auth)
	router.POST("/login", auth.LoginHandler)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "scheduler": sched.Status()})
	})
	router.GET("/ws", api.EventsHandler(broadcaster))

	// Protected routes
	credHandler := api.NewCrudHandler[models.CredentialProfile](credRepo, conf.EncryptionKey)
	devHandler := api.NewCrudHandler[models.Device](deviceStore.GormRepository, conf.EncryptionKey)
	opsHandler := api.NewOpsHandler(sched, passRepo, resultStore, deviceStore.GormRepository, alertStore, evaluator, conf.ResultsDefaultLimit)

	apiGroup := router.Group("/api/v1")
	apiGroup.Use(auth.JWTMiddleware())
	{
		credHandler.RegisterRoutes(apiGroup, "/credentials")
		devHandler.RegisterRoutes(apiGroup, "/devices")
		opsHandler.RegisterRoutes(apiGroup)
	}

	// ══════════════════════════════════════════════════════════════
	// START SERVER
	// ══════════════════════════════════════════════════════════════
	server := &http.Server{
		Addr:    conf.ServerAddress,
		Handler: router,
	}

	go func() {
		slog.Info("Starting HTTP server", "address", conf.ServerAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	// Order matters: the API goes first so nothing can start a new pass,
	// the scheduler next to wait out the in-flight pass, and the writer
	// last, once every finalized record is on the channel.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	sched.Stop()
	stopWriter()
	<-writerDone

	slog.Info("Shutdown complete")
}
