package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spounge-ai/blitzfind/internal/domain"
	"github.com/spounge-ai/blitzfind/internal/infra/config"
)

// Open builds the configured RecordRepository, running migrations first when
// auto_migrate is set and wrapping it in a circuit breaker when enabled.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.RecordRepository, error) {
	pcfg := cfg.Persistence
	if pcfg.AutoMigrate {
		if err := Migrate(pcfg, MigrateUp, logger); err != nil {
			return nil, err
		}
	}

	var repo domain.RecordRepository
	switch pcfg.Driver {
	case config.DriverPostgres:
		pool, err := NewConnectionPool(ctx, pcfg, cfg.Server, logger)
		if err != nil {
			return nil, err
		}
		repo = NewPSQLAdapter(pool, pcfg.Pool.AcquireTimeout, logger)
	case config.DriverSQLite:
		db, err := NewSQLiteDB(ctx, pcfg, logger)
		if err != nil {
			return nil, err
		}
		repo = NewSQLiteAdapter(db, pcfg.Pool.AcquireTimeout, pcfg.Pool.PrePing, logger)
	default:
		return nil, fmt.Errorf("unsupported persistence driver %q", pcfg.Driver)
	}

	if pcfg.CircuitBreaker.Enabled {
		repo = NewRecordRepositoryCircuitBreaker(repo, pcfg.CircuitBreaker.MaxFailures, pcfg.CircuitBreaker.ResetTimeout, logger)
	}
	return repo, nil
}
