// Package app builds the application context shared by the API server and the
// admin CLI. Every collaborator is constructed here and passed on explicitly.
package app

import (
	"context"
	"errors"
	"fmt"

	"catalog/internal/cache"
	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/events"
	"catalog/internal/logger"
	"catalog/internal/metrics"
	"catalog/internal/nonce"
	"catalog/internal/ratelimit"
	"catalog/internal/render"
	"catalog/internal/repository"
	"catalog/internal/services/fakestore"
	"catalog/internal/services/showcase"
	"catalog/internal/settings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *database.Database
	Redis    *redis.Client
	Cache    cache.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Products   *fakestore.Client
	Dispatcher *events.Dispatcher
	Records    *repository.ContentRepository
	Limiter    *ratelimit.Limiter
	Settings   *settings.Service
	Renderer   *render.Renderer
	Nonces     *nonce.Manager
	Showcase   *showcase.Service

	publisher *events.KafkaPublisher
}

// New connects to the database and Redis and wires the services. Kafka
// publishing is enabled only when brokers are configured.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.New(cfg.DatabaseURL, !cfg.IsProduction() && cfg.LogLevel == "debug")
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	nonces, err := nonce.NewManager(cfg.JWTSecret, cfg.NonceTTL)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	a := &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Redis:    redisClient,
		Cache:    cache.NewRedisStore(redisClient),
		Registry: registry,
		Metrics:  m,
		Nonces:   nonces,
	}

	a.Settings = settings.NewService(db.DB)
	a.Dispatcher = events.NewDispatcher(log, a.Settings)
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(events.NewKafkaWriter(brokers, cfg.KafkaTopic), log)
		a.Dispatcher.Register(a.publisher)
		log.Info("Publishing product events to Kafka topic %s", cfg.KafkaTopic)
	}

	a.Products = fakestore.NewClient(cfg.FakeStoreBaseURL, a.Cache, log, m)
	a.Records = repository.NewContentRepository(db.DB, repository.NewImageStore(cfg.MediaDir), a.Dispatcher, log, m)
	a.Limiter = ratelimit.New(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)
	a.Renderer = render.New(cfg.PublicBaseURL)

	a.Showcase = showcase.NewService(showcase.Deps{
		Nonces:   nonces,
		Limiter:  a.Limiter,
		Products: a.Products,
		Records:  a.Records,
		Renderer: func(enhanced bool) showcase.CardRenderer { return a.Renderer.WithEnhancedStyles(enhanced) },
		Styles:   a.Settings,
		Logger:   log,
		Metrics:  m,
	})

	return a, nil
}

// Install creates the schema and default settings. Existing settings are kept.
func (a *App) Install(ctx context.Context) error {
	if err := a.DB.Migrate(); err != nil {
		return err
	}
	if err := a.Settings.Install(ctx); err != nil {
		return err
	}
	a.Logger.Info("Installed schema and default settings")
	return nil
}

// UninstallReport summarizes what Uninstall removed.
type UninstallReport struct {
	Records   int
	CacheKeys int
}

// Uninstall removes settings, every content record with its media, and every
// cached product.
func (a *App) Uninstall(ctx context.Context) (*UninstallReport, error) {
	if err := a.Settings.Delete(ctx); err != nil {
		return nil, err
	}

	report := &UninstallReport{}
	deleted, err := a.Records.DeleteAll(ctx, repository.DefaultBatchSize)
	report.Records = deleted
	if err != nil {
		return report, err
	}

	keys, err := a.Cache.DeleteAll(ctx, fakestore.CacheKeyPrefix())
	report.CacheKeys = keys
	if err != nil {
		return report, fmt.Errorf("failed to clear product cache: %w", err)
	}

	a.Logger.Info("Uninstalled: removed %d records and %d cache keys", report.Records, report.CacheKeys)
	return report, nil
}

// Health pings the database and Redis.
func (a *App) Health(ctx context.Context) error {
	if err := a.DB.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	errs = append(errs, a.Redis.Close(), a.DB.Close())
	return errors.Join(errs...)
}
