package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/retailops/internal/application/alert"
	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/infrastructure/config"
	"github.com/erp/retailops/internal/infrastructure/event"
	"github.com/erp/retailops/internal/infrastructure/lock"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/migration"
	"github.com/erp/retailops/internal/infrastructure/persistence"
	"github.com/erp/retailops/internal/infrastructure/scheduler"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/erp/retailops/internal/interfaces/http/handler"
	"github.com/erp/retailops/internal/interfaces/http/middleware"
	"github.com/erp/retailops/internal/interfaces/http/router"
	"github.com/erp/retailops/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var version = "dev"

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
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting retailops",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	})
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter("retailops")

	var dbTracing *telemetry.DBTracingPlugin
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing, err = telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			DBName:           cfg.Database.DBName,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		}, meter, log)
		if err != nil {
			log.Fatal("Failed to initialize database tracing", zap.Error(err))
		}
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:   log,
		LogLevel: logger.MapGormLogLevel(cfg.Database.LogLevel),
		Tracing:  dbTracing,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		if err := migrate(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Locking
	checks := map[string]handler.Pinger{"database": db}
	lockOpts := lock.Options{
		Retries:    cfg.Lock.Retries,
		MinBackoff: cfg.Lock.MinBackoff,
		MaxBackoff: cfg.Lock.MaxBackoff,
		TTL:        cfg.Lock.TTL,
	}
	var locker ledger.Locker
	switch cfg.Lock.Backend {
	case "redis":
		redisLocker, err := lock.NewRedisLocker(lock.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, lockOpts, log)
		if err != nil {
			log.Fatal("Failed to connect lock backend", zap.Error(err))
		}
		defer func() { _ = redisLocker.Close() }()
		checks["lock"] = redisLocker
		locker = redisLocker
	default:
		locker = lock.NewMemoryLocker(lockOpts)
	}
	log.Info("Key locker ready", zap.String("backend", cfg.Lock.Backend))

	// Events
	serializer := event.NewRegisteredSerializer()
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(alert.NewStockAlertHandler(log).WithNotifier(alert.NewLoggingNotifier(log)))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	uow := persistence.NewGormUnitOfWork(db.DB, event.NewOutboxPublisher(serializer))

	var processor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		relay := event.MultiPublisher{bus}
		if cfg.Event.PubSub.Enabled {
			ps, err := newPubSubPublisher(ctx, cfg.Event.PubSub, serializer, log)
			if err != nil {
				log.Fatal("Failed to initialize Pub/Sub publisher", zap.Error(err))
			}
			defer func() { _ = ps.Close() }()
			relay = append(relay, ps)
		}
		processor = event.NewOutboxProcessor(outboxRepo, relay, serializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  cfg.Event.CleanupInterval,
		}, log)
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	} else {
		// Without the relay, committed events still reach in-process handlers.
		uow.SetPublisher(bus)
	}

	// Ledger
	coord := ledger.NewCoordinator(uow, locker, ledger.CoordinatorConfig{
		MaxAttempts:  cfg.Ledger.MaxAttempts,
		RetryBackoff: cfg.Ledger.RetryBackoff,
	})
	ledgerSvc := ledger.NewService(coord, persistence.NewPolicyRepository(db.DB))

	var ledgerMetrics *telemetry.LedgerMetrics
	if meterProvider.IsEnabled() {
		ledgerMetrics, err = telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:  meter,
			Logger: log,
			State:  telemetry.NewGormLedgerStateProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
		}
		coord.SetMetrics(ledgerMetrics)
		ledgerSvc.SetMetrics(ledgerMetrics)
		ledgerMetrics.StartPeriodicCollection(ctx, telemetry.NewGormTenantProvider(db.DB), cfg.Ledger.MetricsInterval)
	}

	var (
		jobs    *scheduler.Scheduler
		trigger *scheduler.DailyTrigger
	)
	if cfg.Ledger.JobsEnabled {
		hour, minute, err := scheduler.ParseDailySchedule(cfg.Ledger.JobsSchedule)
		if err != nil {
			log.Fatal("Invalid ledger job schedule", zap.Error(err))
		}
		jobs = scheduler.NewScheduler(scheduler.Config{
			MaxConcurrentJobs: cfg.Ledger.JobWorkers,
			JobTimeout:        cfg.Ledger.JobTimeout,
			RetryAttempts:     3,
			RetryDelay:        5 * time.Minute,
		}, scheduler.NewLedgerExecutor(ledgerSvc, 0, cfg.Ledger.VerifyParallelism, log), log)
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start ledger job scheduler", zap.Error(err))
		}
		trigger = scheduler.NewDailyTrigger(scheduler.TriggerConfig{Hour: hour, Minute: minute}, jobs, telemetry.NewGormTenantProvider(db.DB), log)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start daily ledger trigger", zap.Error(err))
		}
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.New(router.Config{
		Logger: log,
		Meter:  meter,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		RequestTimeout: cfg.HTTP.WriteTimeout,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		System:         handler.NewSystemHandler(cfg.App.Name, version, checks, db),
		Ledger:         handler.NewLedgerHandler(ledgerSvc, cfg.Ledger.VerifyParallelism, cfg.Ledger.ExpiryWindowDays),
		Outbox:         handler.NewOutboxHandler(outboxRepo),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

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

	<-ctx.Done()
	log.Info("Shutting down server...")

	timeout := cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		_ = trigger.Stop(shutdownCtx)
		if err := jobs.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping ledger job scheduler", zap.Error(err))
		}
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if ledgerMetrics != nil {
		ledgerMetrics.Stop()
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func migrate(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared pool.
	return m.Up()
}

func newPubSubPublisher(ctx context.Context, cfg config.PubSubConfig, serializer *event.EventSerializer, log *zap.Logger) (*event.PubSubPublisher, error) {
	var credentials string
	if cfg.CredentialsFile != "" {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		credentials = string(raw)
	}
	return event.NewPubSubPublisher(ctx, event.PubSubConfig{
		ProjectID:       cfg.ProjectID,
		Topic:           cfg.Topic,
		CredentialsJSON: credentials,
		CreateTopic:     cfg.CreateTopic,
	}, serializer, log)
}
