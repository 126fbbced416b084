package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/infrastructure/cache"
	"github.com/khata/backend/internal/infrastructure/config"
	"github.com/khata/backend/internal/infrastructure/event"
	"github.com/khata/backend/internal/infrastructure/logger"
	"github.com/khata/backend/internal/infrastructure/persistence"
	"github.com/khata/backend/internal/infrastructure/storage"
	"github.com/khata/backend/internal/infrastructure/telemetry"
	"github.com/khata/backend/internal/interfaces/http/handler"
	"github.com/khata/backend/internal/interfaces/http/middleware"
	"github.com/khata/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Bootstrap logger for telemetry setup; replaced once the OTLP log core exists
	bootLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// Initialize telemetry
	provider, err := telemetry.NewProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		ExportLogs:        cfg.Telemetry.ExportLogs,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, provider.LogCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Khata ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", cfg.App.Version),
	)
	if cfg.App.Env != "production" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Caches: idempotency keys and person totals
	stores, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize caches", zap.Error(err))
	}

	// Receipt storage
	objectStorage, err := storage.New(context.Background(), &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize receipt storage", zap.Error(err))
	}

	ledgerMetrics, err := telemetry.NewLedgerMetrics(provider.Meter("khata/ledger"))
	if err != nil {
		log.Warn("Ledger metrics unavailable", zap.Error(err))
	}

	// Event bus
	eventBus := event.NewInMemoryEventBus(log, event.DefaultConfig())

	// Application services
	debtRepo := persistence.NewGormDebtRepository(db.DB)

	debtService := ledgerapp.NewDebtService(debtRepo)
	debtService.SetEventPublisher(eventBus)
	debtService.SetLogger(log)

	paymentService := ledgerapp.NewPaymentService(debtRepo)
	paymentService.SetEventPublisher(eventBus)
	paymentService.SetLedgerMetrics(ledgerMetrics)
	paymentService.SetLogger(log)

	collectionService := ledgerapp.NewCollectionService(debtRepo, paymentService)
	collectionService.SetIdempotencyStore(stores.Idempotency, cfg.Ledger.IdempotencyTTL)
	collectionService.SetLedgerMetrics(ledgerMetrics)
	collectionService.SetLogger(log)

	aggregationService := ledgerapp.NewAggregationService(debtRepo)
	aggregationService.SetTotalsCache(stores.Totals, cfg.Ledger.TotalsCacheTTL)
	aggregationService.SetBatchSize(cfg.Ledger.AggregationBatchSize)
	aggregationService.SetLogger(log)

	attachmentService := ledgerapp.NewAttachmentService(objectStorage)
	attachmentService.SetConfig(ledgerapp.AttachmentServiceConfig{
		MaxReceiptSize:    cfg.Ledger.MaxReceiptSize,
		DownloadURLExpiry: cfg.Ledger.DownloadURLExpiry,
	})
	attachmentService.SetLogger(log)

	// Cached totals must be gone before the write returns; receipt cleanup can lag
	eventBus.Subscribe(ledgerapp.NewTotalsInvalidationHandler(stores.Totals, log))
	eventBus.SubscribeAsync(ledgerapp.NewReceiptCleanupHandler(attachmentService, debtRepo, log))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// HTTP
	var rateLimiter *middleware.TenantRateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewTenantRateLimiter(middleware.RateLimiterConfig{
			Requests: cfg.HTTP.RateLimitRequests,
			Window:   cfg.HTTP.RateLimitWindow,
		})
	}

	healthHandler := handler.NewHealthHandler(cfg.App.Version, log).
		AddCheck("database", db.Ping).
		AddCheck("cache", stores.Ping)

	engine := router.NewEngine(router.Options{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     provider.IsEnabled(),
		Meter:       provider.Meter("khata/http"),
		RateLimiter: rateLimiter,
		Logger:      log,
	}, router.Handlers{
		Debt:       handler.NewDebtHandler(debtService),
		Payment:    handler.NewPaymentHandler(paymentService),
		Collection: handler.NewCollectionHandler(collectionService),
		Totals:     handler.NewTotalsHandler(aggregationService),
		Attachment: handler.NewAttachmentHandler(attachmentService, cfg.HTTP.MaxUploadSize),
		Health:     healthHandler,
	})

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	if err := eventBus.Stop(ctx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	if err := stores.Close(); err != nil {
		log.Warn("Error closing caches", zap.Error(err))
	}
	if err := provider.Shutdown(ctx); err != nil {
		log.Warn("Error flushing telemetry", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
