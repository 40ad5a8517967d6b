package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spounge-ai/blitzfind/pkg/execution"
	psql "github.com/spounge-ai/blitzfind/pkg/postgres"
)

const defaultQueryTimeout = 3 * time.Second

// PostgresBase provides a base implementation for PostgreSQL-backed repositories.
// It centralizes connection checkout and the per-query deadline.
type PostgresBase struct {
	*psql.Client
	logger *slog.Logger
}

// NewPostgresBase creates a new PostgresBase.
func NewPostgresBase(db *pgxpool.Pool, acquireTimeout time.Duration, logger *slog.Logger) *PostgresBase {
	return &PostgresBase{
		Client: psql.NewClient(db, acquireTimeout),
		logger: logger,
	}
}

// withConn runs fn on one checked-out connection under the query timeout.
func (b *PostgresBase) withConn(ctx context.Context, op string, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	err := b.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		return execution.RunWithTimeout(ctx, defaultQueryTimeout, func(ctx context.Context) error {
			return fn(ctx, conn)
		})
	})
	return classifyPgError(ctx, op, err)
}
