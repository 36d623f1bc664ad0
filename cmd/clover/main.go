package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/activity"
	"github.com/Ramsey-B/clover/internal/repositories/counter"
	"github.com/Ramsey-B/clover/internal/repositories/enterprise"
	"github.com/Ramsey-B/clover/internal/repositories/page"
	"github.com/Ramsey-B/clover/internal/repositories/product"
	"github.com/Ramsey-B/clover/internal/repositories/push"
	taxonomyrepo "github.com/Ramsey-B/clover/internal/repositories/taxonomy"
	"github.com/Ramsey-B/clover/internal/repositories/user"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/counters"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/envelope"
	"github.com/Ramsey-B/clover/pkg/hooks"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/recommender"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/taxonomy"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

func main() {
	// a missing .env is fine outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, flush, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("clover exited with error")
		flush()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (ectologger.Logger, func(), error) {
	zcfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }, nil
}

// app holds everything opened during startup
type app struct {
	cfg      config.Config
	logger   ectologger.Logger
	db       *database.DatabaseInstance
	redis    *redis.Client
	consumer *kafka.Consumer
	dlq      *kafka.DeadLetterProducer
	checker  *health.Checker
	ops      *echo.Echo
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	if cfg.TracingEnabled {
		shutdown, err := tracing.Setup(ctx, cfg.AppName, cfg.Tracing())
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	a := &app{cfg: cfg, logger: logger}
	a.checker = health.NewChecker(cfg.Version, map[string]health.Pinger{
		"database": health.PingFunc(func(ctx context.Context) error {
			if a.db == nil {
				return errors.New("database not connected")
			}
			return a.db.PingContext(ctx)
		}),
		"redis": health.PingFunc(func(ctx context.Context) error {
			if a.redis == nil {
				return errors.New("redis not connected")
			}
			return a.redis.Ping(ctx)
		}),
	})

	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.AddDependency(startup.Dependency{Name: "database", OnStart: a.startDatabase, OnStop: a.stopDatabase})
	s.AddDependency(startup.Dependency{Name: "redis", OnStart: a.startRedis, OnStop: a.stopRedis})
	s.AddDependency(startup.Dependency{
		Name:     "consumer",
		Requires: []string{"database", "redis"},
		OnStart:  a.startConsumer,
		OnStop:   a.stopConsumer,
	})
	s.AddDependency(startup.Dependency{
		Name:     "ops",
		Requires: []string{"consumer"},
		OnStart:  a.startOps,
		OnStop:   a.stopOps,
	})

	if err := s.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ProcessTimeout)
		defer cancel()
		_ = s.Stop(stopCtx)
		return err
	}
	a.checker.SetReady(true)
	logger.WithContext(ctx).Infof("%s started", cfg.AppName)

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	a.checker.SetReady(false)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ProcessTimeout+5*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

func (a *app) startDatabase(ctx context.Context) error {
	db, err := database.Connect(ctx, a.cfg.Database(), a.logger)
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(a.logger, a.cfg.Migration())
	if err := ms.Migrate(db.DB.DB, a.cfg.DatabaseName); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	a.db = db
	return nil
}

func (a *app) stopDatabase(context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *app) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, a.cfg.Redis(), a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *app) stopRedis(context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *app) entityCache() cache.Cache {
	switch a.cfg.CacheBackend {
	case "redis":
		return cache.NewRedis(a.redis.Redis(), "", a.cfg.CacheTTL)
	case "none":
		return cache.Nop{}
	default:
		return cache.NewLocal(a.cfg.LocalCache())
	}
}

func (a *app) newProcessor() *processor.Processor {
	c := a.entityCache()

	activityRepo := activity.NewRepository(a.db, a.logger)
	counterRepo := counter.NewRepository(a.db, a.logger)

	entities := resolver.New(resolver.Stores{
		Enterprises: enterprise.NewRepository(a.db, a.logger),
		Users:       user.NewRepository(a.db, a.logger),
		Products:    product.NewRepository(a.db, a.logger),
		Pages:       page.NewRepository(a.db, a.logger),
		Activity:    activityRepo,
	}, c, a.logger)
	taxa := taxonomy.New(taxonomyrepo.NewRepository(a.db, a.logger), c, a.logger)

	registry := hooks.NewRegistry(a.logger)
	hooks.RegisterDefaults(registry,
		counters.NewSink(counterRepo, a.cfg.CounterBucketDuration),
		recommender.NewSink(a.redis.Redis(), a.logger),
	)
	for _, kind := range envelope.Kinds() {
		if names := registry.Names(kind); len(names) > 0 {
			a.logger.WithFields(map[string]any{"kind": kind.String(), "hooks": names}).Debug("Registered hooks")
		}
	}

	return processor.New(processor.Dependencies{
		Entities:  entities,
		Taxonomy:  taxa,
		Lifecycle: activityRepo,
		Push:      push.NewRepository(a.db, a.logger),
		APIEvents: counterRepo,
		Hooks:     registry,
		Breaker:   database.NewBreaker(a.cfg.Breaker(), a.logger),
	}, a.logger)
}

func (a *app) startConsumer(ctx context.Context) error {
	var dl kafka.DeadLetterPublisher
	if a.cfg.KafkaDeadLetterTopic != "" {
		a.dlq = kafka.NewDeadLetterProducer(a.cfg.DeadLetter(), a.logger)
		dl = a.dlq
	}

	a.consumer = kafka.NewConsumer(a.cfg.Consumer(), a.newProcessor(), dl, a.logger)
	return a.consumer.Start(ctx)
}

func (a *app) stopConsumer(context.Context) error {
	var errs []error
	if a.consumer != nil {
		errs = append(errs, a.consumer.Stop())
	}
	if a.dlq != nil {
		errs = append(errs, a.dlq.Close())
	}
	return errors.Join(errs...)
}

func (a *app) startOps(context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Logger(a.logger))
	a.checker.RegisterRoutes(e)

	addr := fmt.Sprintf(":%d", a.cfg.OpsPort)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Ops server stopped unexpectedly")
		}
	}()
	a.ops = e
	a.logger.Infof("Ops server listening on %s", addr)
	return nil
}

func (a *app) stopOps(ctx context.Context) error {
	if a.ops == nil {
		return nil
	}
	return a.ops.Shutdown(ctx)
}
