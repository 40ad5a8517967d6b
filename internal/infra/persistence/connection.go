package persistence

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	consts "github.com/spounge-ai/blitzfind/internal/constants"
	"github.com/spounge-ai/blitzfind/internal/infra/config"
	psql "github.com/spounge-ai/blitzfind/pkg/postgres"
)

const prePingTimeout = time.Second

// NewConnectionPool creates a PostgreSQL pool that follows the configured pool policy:
// Size connections are kept warm, Size+MaxOverflow is the ceiling, connections older
// than RecycleAge are replaced and idle extras are closed after IdleTimeout.
// Every new connection prepares the record statements, so the schema must be migrated first.
func NewConnectionPool(ctx context.Context, persistenceConfig config.PersistenceConfig, serverConfig config.ServerConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(persistenceConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	if serverConfig.Mode == "production" && poolConfig.ConnConfig.TLSConfig == nil {
		return nil, fmt.Errorf("database connection must use TLS in production mode")
	}
	if poolConfig.ConnConfig.TLSConfig != nil && poolConfig.ConnConfig.TLSConfig.MinVersion < tls.VersionTLS12 {
		poolConfig.ConnConfig.TLSConfig.MinVersion = tls.VersionTLS12
	}

	pc := persistenceConfig.Pool
	poolConfig.MaxConns = int32(pc.MaxConns())
	poolConfig.MinConns = int32(pc.Size)
	poolConfig.MaxConnLifetime = pc.RecycleAge
	poolConfig.MaxConnIdleTime = pc.IdleTimeout
	poolConfig.HealthCheckPeriod = pc.HealthCheckPeriod

	if pc.PrePing {
		poolConfig.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
			pingCtx, cancel := context.WithTimeout(ctx, prePingTimeout)
			defer cancel()
			if err := conn.Ping(pingCtx); err != nil {
				// Returning false destroys the connection; pgxpool then acquires another.
				logger.WarnContext(ctx, "discarding dead pooled connection", "error", err)
				return false
			}
			return true
		}
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return psql.PrepareStatements(ctx, conn, consts.PostgresQueries)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.InfoContext(ctx, "postgres pool ready",
		"min_conns", poolConfig.MinConns,
		"max_conns", poolConfig.MaxConns,
		"max_conn_lifetime", poolConfig.MaxConnLifetime,
		"max_conn_idle_time", poolConfig.MaxConnIdleTime,
		"pre_ping", pc.PrePing,
	)

	return pool, nil
}
