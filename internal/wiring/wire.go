package wiring

import (
	"context"
	"fmt"
	"log/slog"

	apphttp "github.com/spounge-ai/blitzfind/internal/app/http"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/internal/importer"
	infra_config "github.com/spounge-ai/blitzfind/internal/infra/config"
	"github.com/spounge-ai/blitzfind/internal/infra/persistence"
	"github.com/spounge-ai/blitzfind/internal/service"
	"github.com/spounge-ai/blitzfind/pkg/cache"
	"github.com/spounge-ai/blitzfind/pkg/execution"
	"github.com/spounge-ai/blitzfind/pkg/patterns/lifecycle"
)

// Container holds the process-wide collaborators built from one Config.
type Container struct {
	Config          *infra_config.Config
	Logger          *slog.Logger
	Repository      domain.RecordRepository
	Cache           *cache.Cache[string, *domain.Record]
	Records         service.RecordService
	Importer        *importer.Importer
	Monitor         *persistence.ConnectionMonitor
	ErrorClassifier *app_errors.ErrorClassifier

	manager *lifecycle.Manager
}

// ProvideDependencies opens the store and builds the cache, record service and importer on top of it.
func ProvideDependencies(ctx context.Context, cfg *infra_config.Config, logger *slog.Logger) (*Container, error) {
	repo, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	recordCache := provideCache(cfg.Cache)
	records := service.NewRecordService(repo, recordCache, provideRetryPolicy(cfg.Persistence.Retry), logger)
	monitor := persistence.NewConnectionMonitor(repo, cfg.Persistence.Pool.HealthCheckPeriod, persistence.LogAlerter{Logger: logger})

	return &Container{
		Config:          cfg,
		Logger:          logger,
		Repository:      repo,
		Cache:           recordCache,
		Records:         records,
		Importer:        importer.New(records, cfg.Import.MaxConcurrency, logger),
		Monitor:         monitor,
		ErrorClassifier: app_errors.NewErrorClassifier(logger),
		manager:         lifecycle.NewManager(logger, monitor),
	}, nil
}

func provideCache(cfg infra_config.CacheConfig) *cache.Cache[string, *domain.Record] {
	return cache.New[string, *domain.Record](
		cache.WithCapacity[string, *domain.Record](cfg.MaxSize),
		cache.WithDefaultTTL[string, *domain.Record](cfg.TTL),
		cache.WithCleanupInterval[string, *domain.Record](cfg.CleanupInterval),
	)
}

func provideRetryPolicy(cfg infra_config.RetryConfig) execution.RetryPolicy {
	return execution.RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Retryable:      app_errors.IsTransient,
	}
}

// NewHTTPServer builds the API server over the container's collaborators.
func (c *Container) NewHTTPServer() (*apphttp.Server, error) {
	tlsConfig, err := ConfigureTLS(c.Config.Server.TLS)
	if err != nil {
		return nil, err
	}
	return apphttp.New(c.Config.Server, apphttp.Deps{
		Records:         c.Records,
		Importer:        c.Importer,
		Health:          c.manager,
		Version:         c.Config.ServiceVersion,
		Commit:          c.Config.BuildCommit,
		ErrorClassifier: c.ErrorClassifier,
		Logger:          c.Logger,
	}, apphttp.WithTLS(tlsConfig))
}

// Lifecycle registers resources after the connection monitor, so the monitor
// starts first and stops last. /healthz reports the same manager.
func (c *Container) Lifecycle(resources ...lifecycle.ManagedResource) *lifecycle.Manager {
	c.manager.Add(resources...)
	return c.manager
}

// Close stops the cache sweeper and releases the store's connections.
func (c *Container) Close() error {
	c.Cache.Stop()
	if err := c.Repository.Close(); err != nil {
		return fmt.Errorf("failed to close record store: %w", err)
	}
	return nil
}
