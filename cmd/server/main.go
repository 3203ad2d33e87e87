package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/clinic/backend/internal/infrastructure/auth"
	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/event"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/infrastructure/migration"
	"github.com/clinic/backend/internal/infrastructure/notification"
	"github.com/clinic/backend/internal/infrastructure/persistence"
	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/clinic/backend/internal/interfaces/http/handler"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/clinic/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// OpenTelemetry providers; each one is a no-op when disabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, zapcore.InfoLevel)

	log.Info("Starting clinic backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if cfg.Database.AutoMigrate {
		if err := runMigrations(&cfg.Database, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Database connection with the zap-backed GORM logger
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		LogFullSQL:      cfg.Telemetry.LogFullSQL,
		SlowQueryThresh: cfg.Database.SlowQueryThreshold,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	uow := persistence.NewGormUnitOfWork(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	creditNoteRepo := persistence.NewGormCreditNoteRepository(db.DB)
	applicationRepo := persistence.NewGormCreditNoteApplicationRepository(db.DB)
	historyRepo := persistence.NewGormCreditNoteHistoryRepository(db.DB)
	patients := persistence.NewGormPatientDirectory(db.DB)

	// Application services
	invoiceService := appledger.NewInvoiceService(uow, invoiceRepo, creditNoteRepo, applicationRepo, log)
	creditNoteService := appledger.NewCreditNoteService(uow, invoiceRepo, creditNoteRepo, applicationRepo, historyRepo, patients, log)

	// Redis backs notifications and token revocation when configured
	var (
		notifier    appledger.StatusNotifier = appledger.NewLoggingStatusNotifier(log)
		revocations auth.RevocationList      = auth.NewInMemoryRevocationList()
	)
	if cfg.Notification.Driver == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		notifier = notification.NewRedisPublisher(redisClient, cfg.Notification.Channel, cfg.Notification.Timeout, log)
		revocations = auth.NewRedisRevocationList(redisClient)
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()), zap.String("channel", cfg.Notification.Channel))
	}

	// Event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	statusHandler := appledger.NewInvoiceStatusChangedHandler(log).WithNotifier(notifier)
	eventBus.Subscribe(statusHandler)

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meterProvider.Meter(cfg.App.Name))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	eventBus.Subscribe(ledgerMetrics)

	log.Info("Event handlers registered",
		zap.Strings("status_notification_events", statusHandler.EventTypes()),
		zap.Strings("ledger_metric_events", ledgerMetrics.EventTypes()),
	)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	invoiceService.SetEventPublisher(eventBus)
	creditNoteService.SetEventPublisher(eventBus)

	// HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	creditNoteHandler := handler.NewCreditNoteHandler(creditNoteService)
	healthHandler := handler.NewHealthHandler(db, version)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up request validation", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// request id before logging, span before metrics and auth
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.App.Name,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(meterProvider.Meter(cfg.App.Name), log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check stays outside the authenticated API
	engine.GET("/health", healthHandler.Health)

	jwtService := auth.NewJWTService(cfg.JWT)
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:  jwtService,
		Revocations: revocations,
		SkipPaths:   []string{"/health"},
		Logger:      log,
	}))
	router.RegisterLedger(r, router.LedgerHandlers{
		Invoices:    invoiceHandler,
		CreditNotes: creditNoteHandler,
	})
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, loggerProvider)

	log.Info("Server exited gracefully")
}

// runMigrations applies pending migrations on a short-lived connection so
// the migrator can close its driver without touching the GORM pool.
func runMigrations(cfg *config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	source := migration.EmbeddedSource()
	if cfg.MigrationsPath != "" {
		source = migration.DirSource(cfg.MigrationsPath)
	}
	m, err := migration.New(sqlDB, source, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry provider", zap.Error(err))
		}
	}
}
