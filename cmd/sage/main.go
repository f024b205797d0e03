// Command sage runs the adaptive signal intelligence service: it consumes
// detection events from Kafka, tracks signal lifecycles, calibrates
// thresholds from decision outcomes, and serves entity intelligence
// profiles over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/sage/config"
	"github.com/Ramsey-B/sage/internal/repositories/calibrationlog"
	"github.com/Ramsey-B/sage/internal/repositories/decisionjournal"
	"github.com/Ramsey-B/sage/internal/repositories/healthscore"
	"github.com/Ramsey-B/sage/internal/repositories/patternsnapshot"
	"github.com/Ramsey-B/sage/internal/repositories/signallifecycle"
	"github.com/Ramsey-B/sage/internal/repositories/thresholdconfig"
	"github.com/Ramsey-B/sage/pkg/calendar"
	"github.com/Ramsey-B/sage/pkg/calibration"
	"github.com/Ramsey-B/sage/pkg/correlation"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/effectiveness"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/lifecycle"
	"github.com/Ramsey-B/sage/pkg/middleware"
	"github.com/Ramsey-B/sage/pkg/patterns"
	"github.com/Ramsey-B/sage/pkg/processor"
	"github.com/Ramsey-B/sage/pkg/profile"
	"github.com/Ramsey-B/sage/pkg/recency"
	"github.com/Ramsey-B/sage/pkg/redis"
	calibrationroutes "github.com/Ramsey-B/sage/pkg/routes/calibration"
	healthroutes "github.com/Ramsey-B/sage/pkg/routes/health"
	lifecycleroutes "github.com/Ramsey-B/sage/pkg/routes/lifecycle"
	profileroutes "github.com/Ramsey-B/sage/pkg/routes/profile"
	"github.com/Ramsey-B/sage/pkg/seasonal"
	"github.com/Ramsey-B/sage/pkg/startup"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/tracing/exporters"
)

// version is stamped at build time.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("sage exited with error")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) ectologger.Logger {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		zapLogger = zap.NewNop()
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingOTLPProtocol,
			Insecure: cfg.TracingInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return err
		}

		provider, err := tracing.InitProvider(ctx, cfg.AppName, exporter)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(flushCtx)
		}()
	}

	sqlxDB, err := database.Connect(database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		DatabaseName:    cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	db := database.NewDatabaseInstance(sqlxDB, logger)

	migrationDriver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		return err
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})
	if err := migrations.Migrate(cfg.DatabaseName, migrationDriver); err != nil {
		return err
	}

	calendarConfig, err := calendar.LoadConfig(cfg.CalendarConfigPath)
	if err != nil {
		return err
	}
	cal := calendar.New(calendarConfig)

	rules, err := seasonal.LoadRules(cfg.CalendarConfigPath)
	if err != nil {
		return err
	}
	modifier := seasonal.NewModifier(cal, rules)

	redisClient, err := redis.NewClient(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return err
	}
	locker := redis.NewLocker(redisClient, "sage:calibration")

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	emitter := events.NewEmitter(producer, logger)

	lifecycleRepo := signallifecycle.NewRepository(db, logger)
	journalRepo := decisionjournal.NewRepository(db, logger)
	scoreRepo := healthscore.NewRepository(db, logger)
	snapshotRepo := patternsnapshot.NewRepository(db, logger)
	configRepo := thresholdconfig.NewRepository(db, logger)
	adjustmentRepo := calibrationlog.NewRepository(db, logger)

	weighter := recency.NewWeighter(cal, recency.Config{
		HalfLifeDays:   cfg.RecencyHalfLifeDays,
		MinimumWeight:  cfg.RecencyMinimumWeight,
		SlopeThreshold: cfg.TrendSlopeThreshold,
	})
	analyzer := patterns.NewAnalyzer()
	calculator := correlation.NewCalculator(correlation.Config{CycleHours: cfg.CorrelationCycleHours})
	scorer := effectiveness.NewScorer(effectiveness.Config{
		MinimumFires:  cfg.EffectivenessMinimumFires,
		HighTierFires: cfg.EffectivenessHighTierFires,
	})

	tracker := lifecycle.NewTracker(lifecycleRepo, cal, lifecycle.Config{
		RecentMaxBusinessDays:         cfg.RecentMaxBusinessDays,
		OngoingMaxBusinessDays:        cfg.OngoingMaxBusinessDays,
		ChronicEscalationBusinessDays: cfg.ChronicEscalationDays,
		HistoryMaxItems:               cfg.LifecycleHistoryMaxItems,
	}, logger)

	calibrator := calibration.NewCalibrator(configRepo, adjustmentRepo, calibration.Config{
		MaxAdjustmentPercent: cfg.CalibrationMaxAdjustmentPercent,
		CooldownDays:         cfg.CalibrationCooldownDays,
	}, logger)
	runner := calibration.NewRunner(journalRepo, scorer, calibrator, locker, emitter, calibration.RunnerConfig{
		LookbackDays: cfg.EffectivenessLookbackDays,
		LockTTL:      time.Duration(cfg.CalibrationLockTTLSeconds) * time.Second,
	}, logger)

	synthConfig := profile.DefaultConfig()
	synthConfig.ProjectionUnits = cfg.ProfileProjectionUnits
	synthesizer := profile.NewSynthesizer(cal, weighter, analyzer, calculator, synthConfig)
	loader := profile.NewLoader(scoreRepo, lifecycleRepo, snapshotRepo, synthesizer, logger)

	detectionProcessor := processor.NewProcessor(logger, tracker, emitter, modifier)
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaInputTopic,
		ConsumerGroup: cfg.KafkaConsumerGroup,
	}, logger, detectionProcessor.HandleMessage)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}
	registrations := []error{
		ectoinject.RegisterInstance[ectologger.Logger](container, logger),
		ectoinject.RegisterInstance[database.DB](container, db),
		ectoinject.RegisterInstance[*signallifecycle.Repository](container, lifecycleRepo),
		ectoinject.RegisterInstance[*decisionjournal.Repository](container, journalRepo),
		ectoinject.RegisterInstance[*calibrationlog.Repository](container, adjustmentRepo),
		ectoinject.RegisterInstance[*calibration.Runner](container, runner),
		ectoinject.RegisterInstance[*profile.Loader](container, loader),
		ectoinject.RegisterInstance[*profile.Synthesizer](container, synthesizer),
	}
	for _, err := range registrations {
		if err != nil {
			return err
		}
	}

	checker := healthroutes.NewChecker(db, redisClient, version)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&dependency{
		name:  "database",
		start: db.PingContext,
		stop:  func(context.Context) error { return db.Close() },
	})
	boot.AddDependency(&dependency{
		name:  "redis",
		start: redisClient.Ping,
		stop:  func(context.Context) error { return redisClient.Close() },
	})
	boot.AddDependency(&dependency{
		name: "kafka-producer",
		stop: func(context.Context) error { return producer.Close() },
	})
	if cfg.KafkaConsumerEnabled {
		boot.AddDependency(&dependency{
			name:      "kafka-consumer",
			dependsOn: []string{"database", "kafka-producer"},
			start:     consumer.Start,
			stop:      func(context.Context) error { return consumer.Stop() },
		})
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	checker.SetReady(true)

	e := newServer(cfg, logger, checker)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
	}

	return boot.Stop(shutdownCtx)
}

func newServer(cfg *config.Config, logger ectologger.Logger, checker *healthroutes.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	lifecycleroutes.Register(api.Group("/lifecycles"))
	profileroutes.Register(api.Group("/profiles"))
	calibrationroutes.Register(api.Group("/calibration"))

	return e
}

// dependency adapts plain start/stop funcs to the startup dependency graph.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string { return d.name }

func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
