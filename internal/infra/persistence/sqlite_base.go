package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spounge-ai/blitzfind/pkg/execution"
)

// SQLiteBase mirrors PostgresBase for database/sql: explicit checkout of one
// *sql.Conn per operation, optional pre-ping and a per-query deadline.
type SQLiteBase struct {
	DB             *sql.DB
	acquireTimeout time.Duration
	prePing        bool
	logger         *slog.Logger
}

// NewSQLiteBase creates a new SQLiteBase.
func NewSQLiteBase(db *sql.DB, acquireTimeout time.Duration, prePing bool, logger *slog.Logger) *SQLiteBase {
	return &SQLiteBase{DB: db, acquireTimeout: acquireTimeout, prePing: prePing, logger: logger}
}

func (b *SQLiteBase) withConn(ctx context.Context, op string, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := b.acquire(ctx)
	if err != nil {
		return classifySQLiteError(ctx, op, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			b.logger.WarnContext(ctx, "failed to release sqlite connection", "error", cerr)
		}
	}()

	err = execution.RunWithTimeout(ctx, defaultQueryTimeout, func(ctx context.Context) error {
		return fn(ctx, conn)
	})
	return classifySQLiteError(ctx, op, err)
}

// acquire checks out a connection. With pre-ping on, a connection that fails the
// ping is discarded and one replacement is tried.
func (b *SQLiteBase) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx := ctx
	if b.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, b.acquireTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := b.DB.Conn(acquireCtx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %w", ErrAcquireTimeout, b.acquireTimeout, err)
			}
			return nil, fmt.Errorf("failed to acquire connection: %w", err)
		}
		if !b.prePing {
			return conn, nil
		}
		if lastErr = conn.PingContext(acquireCtx); lastErr == nil {
			return conn, nil
		}

		b.logger.WarnContext(ctx, "discarding dead sqlite connection", "error", lastErr, "attempt", attempt+1)
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		_ = conn.Close()
	}
	return nil, fmt.Errorf("%w: %w", ErrDeadConnection, lastErr)
}
