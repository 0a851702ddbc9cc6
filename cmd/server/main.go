package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	appreceiving "github.com/erp/reconciliation/internal/application/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/cache"
	"github.com/erp/reconciliation/internal/infrastructure/config"
	"github.com/erp/reconciliation/internal/infrastructure/event"
	"github.com/erp/reconciliation/internal/infrastructure/logger"
	"github.com/erp/reconciliation/internal/infrastructure/persistence"
	"github.com/erp/reconciliation/internal/infrastructure/persistence/models"
	"github.com/erp/reconciliation/internal/infrastructure/storage"
	"github.com/erp/reconciliation/internal/infrastructure/telemetry"
	"github.com/erp/reconciliation/internal/interfaces/http/handler"
	"github.com/erp/reconciliation/internal/interfaces/http/middleware"
	"github.com/erp/reconciliation/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

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
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Attach(log, zapcore.InfoLevel)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		_ = loggerProvider.Shutdown(shutdownCtx)
		_ = meterProvider.Shutdown(shutdownCtx)
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	log.Info("Starting reconciliation service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel), cfg.Log.SlowThreshold)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		// local runs have no migration step
		if err := db.DB.AutoMigrate(models.All()...); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        cfg.Database.Driver,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Reconciliation service
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	receptionRepo := persistence.NewGormReceptionRepository(db.DB)
	service := appreceiving.NewReconciliationService(
		persistence.NewGormTransactionScope(db.DB),
		orderRepo,
		receptionRepo,
		appreceiving.Config{
			SequencePrefix: cfg.Reconciliation.SequencePrefix,
			SequenceWidth:  cfg.Reconciliation.SequenceWidth,
			MaxAttempts:    cfg.Reconciliation.MaxAttempts,
			BaseBackoff:    cfg.Reconciliation.BaseBackoff,
			MaxBackoff:     cfg.Reconciliation.MaxBackoff,
		},
	)
	meter := meterProvider.Meter("reconciliation")
	reconMetrics, err := telemetry.NewReconciliationMetrics(meter)
	if err != nil {
		log.Warn("Reconciliation metrics unavailable", zap.Error(err))
	} else {
		service.SetMetrics(reconMetrics)
	}
	metricsService := appreceiving.NewMetricsAggregator(persistence.NewGormMetricsRepository(db.DB))

	// Events
	idemStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() { _ = idemStore.Close() }()
	idemCfg := shared.IdempotencyConfig{Enabled: true, TTL: cfg.Redis.IdempotencyTTL}

	// Receptions reach in-process subscribers through the bus, either directly
	// or via the kafka consumer when a consumer group is configured.
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewLogPublisher())
	consumeFromKafka := cfg.Kafka.Enabled && cfg.Kafka.ConsumerGroup != ""

	serializer := event.NewReceptionEventSerializer()
	var publishers []shared.EventPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := event.NewKafkaPublisher(event.NewKafkaWriter(cfg.Kafka), serializer, log)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Error closing kafka writer", zap.Error(err))
			}
		}()
		publishers = append(publishers, event.NewIdempotentPublisher(kafkaPublisher, idemStore, idemCfg, log))
		log.Info("Publishing domain events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if !consumeFromKafka {
		publishers = append(publishers, bus)
	}
	service.SetEventPublisher(event.NewCompositePublisher(publishers...))

	consumerDone := make(chan struct{})
	if consumeFromKafka {
		consumer := event.NewKafkaConsumer(
			event.NewKafkaReader(cfg.Kafka),
			serializer,
			event.NewIdempotentHandler(bus, idemStore, idemCfg, log),
			log,
		)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Event consumer stopped", zap.Error(err))
			}
		}()
		log.Info("Event consumer started", zap.String("group", cfg.Kafka.ConsumerGroup))
	} else {
		close(consumerDone)
	}

	// Documents
	if cfg.Storage.Enabled {
		store, err := storage.NewS3DocumentStore(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize document storage", zap.Error(err))
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatal("Document bucket unavailable", zap.Error(err), zap.String("bucket", store.Bucket()))
		}
		service.SetDocumentStorage(store)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	health := handler.NewHealthHandler(0).AddCheck("database", func(context.Context) error {
		return db.Ping()
	})
	engine := router.NewEngine(router.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		HTTP:           cfg.HTTP,
		Logger:         log,
		Meter:          meterProvider.Meter("reconciliation/http"),
		TracerProvider: otel.GetTracerProvider(),
	}, router.Handlers{
		Receptions: handler.NewReceptionHandler(service),
		Metrics:    handler.NewMetricsHandler(metricsService),
		Documents:  handler.NewDocumentHandler(service),
		Health:     health,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	<-consumerDone

	log.Info("Server exited gracefully")
}
