package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/patterns/circuitbreaker"
	psql "github.com/spounge-ai/blitzfind/pkg/postgres"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrAcquireTimeout is returned when the SQLite pool has no free connection in time.
var ErrAcquireTimeout = errors.New("timed out acquiring sqlite connection")

// ErrDeadConnection is returned when a replacement for a dead connection also fails its ping.
var ErrDeadConnection = errors.New("pooled connection failed pre-ping")

// callerDone wraps a failure that happened after the caller's own context
// ended with that context's error, and returns nil while ctx is live.
// Such failures are never transient.
func callerDone(ctx context.Context, op string, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return nil
	}
	if errors.Is(err, ctxErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ctxErr, err)
}

// classifyPgError attaches ErrTransient or ErrFatal to a PostgreSQL failure.
// ctx is the caller's context, before any per-query deadline.
func classifyPgError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if wrapped := callerDone(ctx, op, err); wrapped != nil {
		return wrapped
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code),
			pgerrcode.IsTransactionRollback(pgErr.Code):
			return fmt.Errorf("%s: %w: %w", op, app_errors.ErrTransient, err)
		case pgerrcode.IsSyntaxErrororAccessRuleViolation(pgErr.Code),
			pgerrcode.IsInternalError(pgErr.Code):
			return fmt.Errorf("%s: %w: %w", op, app_errors.ErrFatal, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.Is(err, psql.ErrAcquireTimeout) ||
		errors.As(err, &connectErr) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %w", op, app_errors.ErrTransient, err)
	}

	return classifyCommon(op, err)
}

// classifySQLiteError attaches ErrTransient or ErrFatal to a SQLite failure.
// ctx is the caller's context, before any per-query deadline.
func classifySQLiteError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if wrapped := callerDone(ctx, op, err); wrapped != nil {
		return wrapped
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%s: %w: %w", op, app_errors.ErrTransient, err)
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_SCHEMA, sqlite3.SQLITE_ERROR:
			return fmt.Errorf("%s: %w: %w", op, app_errors.ErrFatal, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, ErrAcquireTimeout) || errors.Is(err, ErrDeadConnection) {
		return fmt.Errorf("%s: %w: %w", op, app_errors.ErrTransient, err)
	}

	return classifyCommon(op, err)
}

// classifyCommon runs only while the caller's context is live, so a deadline
// here is the per-query timeout.
func classifyCommon(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, circuitbreaker.ErrOpen):
		return fmt.Errorf("%s: %w: %w", op, app_errors.ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
