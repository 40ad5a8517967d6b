package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAcquireTimeout is returned when no pooled connection became available in time.
var ErrAcquireTimeout = errors.New("timed out acquiring pooled connection")

// Client is a PostgreSQL client with explicit per-operation connection checkout.
type Client struct {
	DB             *pgxpool.Pool
	AcquireTimeout time.Duration
}

// NewClient creates a new PostgreSQL client.
func NewClient(db *pgxpool.Pool, acquireTimeout time.Duration) *Client {
	return &Client{DB: db, AcquireTimeout: acquireTimeout}
}

// WithConn checks out one connection for the duration of fn and always releases it.
// The acquire wait is bounded by AcquireTimeout; fn runs under the caller's ctx.
func (c *Client) WithConn(ctx context.Context, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	acquireCtx := ctx
	if c.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, c.AcquireTimeout)
		defer cancel()
	}

	conn, err := c.DB.Acquire(acquireCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", ErrAcquireTimeout, c.AcquireTimeout, err)
		}
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(ctx, conn)
}

// PrepareStatements prepares each named statement on conn. Queries can then pass
// the name instead of the SQL text. Meant for pgxpool's AfterConnect hook.
func PrepareStatements(ctx context.Context, conn *pgx.Conn, statements map[string]string) error {
	for name, sql := range statements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
	}
	return nil
}
