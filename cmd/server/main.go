package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	integrationapp "github.com/catalogsync/backend/internal/application/integration"
	listingapp "github.com/catalogsync/backend/internal/application/listing"
	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/catalogsync/backend/internal/infrastructure/auth"
	"github.com/catalogsync/backend/internal/infrastructure/automation"
	"github.com/catalogsync/backend/internal/infrastructure/cache"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/crypto"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
	"github.com/catalogsync/backend/internal/infrastructure/event"
	"github.com/catalogsync/backend/internal/infrastructure/extractor"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
	"github.com/catalogsync/backend/internal/infrastructure/storage"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/catalogsync/backend/internal/interfaces/http/handler"
	"github.com/catalogsync/backend/internal/interfaces/http/middleware"
	"github.com/catalogsync/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const rateLimitSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting catalog sync backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		return err
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	if level, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		log = loggerProvider.Bridge(log, level)
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return err
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		return err
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, cfg.Telemetry.DBSlowQueryThresh, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		return err
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	log.Info("Database connected successfully")

	// Locks
	locker, closeLocker, err := cache.NewLockerFactory(cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeLocker() }()

	// Repositories
	productRepo := persistence.NewGormProductRecordRepository(db.DB)
	automationRepo := persistence.NewGormAutomationRecordRepository(db.DB)
	supplierDir := persistence.NewGormSupplierDirectory(db.DB)
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	attemptRepo := persistence.NewGormSyncAttemptRepository(db.DB)
	orderRepo := persistence.NewGormRemoteOrderRepository(db.DB)

	// Channel clients
	credentialKey, err := cfg.Security.CredentialKeyBytes()
	if err != nil {
		return err
	}
	sealer, err := crypto.NewCredentialSealer(credentialKey)
	if err != nil {
		return err
	}
	channels := cfg.Channels
	if len(channels) == 0 {
		channels = map[string]config.ChannelConfig{
			config.DefaultChannelType: {RateLimitPerMin: cfg.Sync.RateLimitPerMin},
		}
	}
	clientRegistry, err := ecommerce.NewClientRegistryFromConfig(channels, log)
	if err != nil {
		return err
	}

	// Background workers
	taskQueueCfg := scheduler.DefaultTaskQueueConfig()
	if cfg.Automation.Workers > 0 {
		taskQueueCfg.Workers = cfg.Automation.Workers
	}
	if cfg.Automation.QueueSize > 0 {
		taskQueueCfg.QueueSize = cfg.Automation.QueueSize
	}
	taskQueue, err := scheduler.NewTaskQueue(taskQueueCfg, log.Named("tasks"))
	if err != nil {
		return err
	}

	// Application services
	eventBus := event.NewInMemoryEventBus(log)

	registryService := integrationapp.NewChannelRegistryService(connectionRepo, clientRegistry, sealer, cfg.Sync.ProbeTimeout, log)
	mappingService := integrationapp.NewMappingService(mappingRepo, connectionRepo, productRepo, nil, log)
	statusService := integrationapp.NewSyncStatusService(connectionRepo, mappingRepo, attemptRepo, orderRepo, log)

	reconcilerCfg := integrationapp.DefaultReconcilerConfig()
	applyDuration(&reconcilerCfg.RemoteCallTimeout, cfg.Sync.RemoteCallTimeout)
	applyDuration(&reconcilerCfg.PassBudget, cfg.Sync.PassBudget)
	applyDuration(&reconcilerCfg.DriftInterval, cfg.Sync.DriftInterval)
	applyDuration(&reconcilerCfg.OrderLookback, cfg.Sync.OrderLookback)
	applyDuration(&reconcilerCfg.Backoff.Base, cfg.Sync.BackoffBase)
	applyDuration(&reconcilerCfg.Backoff.Cap, cfg.Sync.BackoffCap)
	if cfg.Sync.TripThreshold > 0 {
		reconcilerCfg.TripThreshold = cfg.Sync.TripThreshold
	}
	reconciler := integrationapp.NewReconciler(
		connectionRepo, mappingRepo, attemptRepo, orderRepo, productRepo,
		registryService, registryService, locker, reconcilerCfg, log.Named("reconciler"),
	)
	reconciler.SetMetrics(syncMetrics)

	syncScheduler, err := newSyncScheduler(cfg.Sync, reconciler, log)
	if err != nil {
		return err
	}
	mappingService.SetTrigger(syncScheduler)
	statusService.SetTrigger(syncScheduler)

	policy, err := newApprovalPolicy(cfg.Ingestion)
	if err != nil {
		return err
	}
	var scorerOpts []listing.ScorerOption
	if cfg.Ingestion.TopK > 0 {
		scorerOpts = append(scorerOpts, listing.WithTopK(cfg.Ingestion.TopK))
	}
	extractorClient, err := extractor.NewClient(extractor.Config{
		BaseURL: cfg.Ingestion.ExtractorURL,
		Timeout: cfg.Ingestion.ExtractorTimeout,
		Retries: cfg.Ingestion.ExtractorRetries,
	}, nil, log.Named("extractor"))
	if err != nil {
		return err
	}
	ingestionService := listingapp.NewIngestionService(
		productRepo, extractorClient, listing.NewSimilarityScorer(scorerOpts...), policy,
		locker, supplierDir, eventBus, ingestionConfig(cfg.Ingestion), log.Named("ingestion"),
	)
	ingestionService.SetMetrics(syncMetrics)

	if cfg.Storage.Enabled {
		archiver, err := storage.NewS3SnapshotArchiver(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return err
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			return err
		}
		ingestionService.SetSnapshotArchiver(archiver)
		log.Info("Candidate snapshots enabled", zap.String("bucket", archiver.Bucket()))
	}

	reviewService := listingapp.NewReviewService(productRepo, automationRepo, locker, eventBus, mappingService, log.Named("review"))

	var orderAutomation listing.OrderAutomation
	if cfg.Automation.Enabled {
		client, err := automation.NewClient(cfg.Automation.BaseURL, cfg.Automation.Timeout, nil, log.Named("automation"))
		if err != nil {
			return err
		}
		orderAutomation = client
	}
	dispatcher := listingapp.NewActivationDispatcher(taskQueue, productRepo, orderAutomation, automationRepo, mappingService, log)
	eventBus.Subscribe(dispatcher, dispatcher.EventTypes()...)
	audit := event.NewAuditLogHandler(log.Named("audit"))
	eventBus.Subscribe(audit, audit.EventTypes()...)

	// Authentication
	verifierOpts := []auth.VerifierOption{}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
		verifierOpts = append(verifierOpts, auth.WithRevocationList(auth.NewRedisRevocationList(redisClient)))
	}
	verifier, err := auth.NewVerifier(cfg.JWT, verifierOpts...)
	if err != nil {
		return err
	}

	// HTTP
	if err := middleware.SetupValidator(); err != nil {
		return err
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return err
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			Verifier:  verifier,
			SkipPaths: []string{"/health", "/ready"},
			Logger:    log,
		}),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(meter, log),
	)

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst, 10*time.Minute)
		engine.Use(middleware.RateLimit(limiter))
	}

	router.Mount(engine, router.Handlers{
		Listing: handler.NewListingHandler(ingestionService, reviewService),
		Channel: handler.NewChannelHandler(registryService, mappingService),
		Sync:    handler.NewSyncHandler(registryService, statusService, taskQueue),
		System:  handler.NewSystemHandler(cfg.App.Name, version, sqlDB),
	})

	// Start
	if err := taskQueue.Start(ctx); err != nil {
		return err
	}
	if err := syncScheduler.Start(ctx); err != nil {
		return err
	}
	if limiter != nil {
		go sweepRateLimiter(ctx, limiter)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Sync scheduler did not stop cleanly", zap.Error(err))
	}
	if err := taskQueue.Stop(shutdownCtx); err != nil {
		log.Warn("Task queue did not drain", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler stop failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	return nil
}

func newSyncScheduler(cfg config.SyncConfig, runner scheduler.PassRunner, log *zap.Logger) (*scheduler.SyncScheduler, error) {
	schedCfg := scheduler.DefaultSyncSchedulerConfig()
	schedCfg.Enabled = cfg.Enabled
	if cfg.Workers > 0 {
		schedCfg.Workers = cfg.Workers
	}
	applyDuration(&schedCfg.PassInterval, cfg.PassInterval)
	return scheduler.NewSyncScheduler(schedCfg, runner, log.Named("sync"))
}

func ingestionConfig(cfg config.IngestionConfig) listingapp.IngestionConfig {
	out := listingapp.DefaultIngestionConfig()
	if cfg.CorpusLimit > 0 {
		out.CorpusLimit = cfg.CorpusLimit
	}
	applyDuration(&out.LockTTL, cfg.LockTTL)
	applyDuration(&out.ExtractTimeout, cfg.ExtractorTimeout)
	return out
}

func newApprovalPolicy(cfg config.IngestionConfig) (*listing.ApprovalPolicy, error) {
	overrides := make(map[string]listing.Thresholds, len(cfg.CategoryThresholds))
	for category, t := range cfg.CategoryThresholds {
		overrides[category] = listing.Thresholds{Duplicate: t.Duplicate, Quality: t.Quality}
	}
	return listing.NewApprovalPolicy(listing.Thresholds{
		Duplicate: cfg.DuplicateThreshold,
		Quality:   cfg.QualityThreshold,
	}, overrides)
}

func sweepRateLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(rateLimitSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}

func applyDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
