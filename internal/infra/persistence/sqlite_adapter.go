package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	consts "github.com/spounge-ai/blitzfind/internal/constants"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
)

// SQLiteAdapter stores records in a single SQLite table.
type SQLiteAdapter struct {
	*SQLiteBase
	now func() time.Time
}

var _ domain.RecordRepository = (*SQLiteAdapter)(nil)

func NewSQLiteAdapter(db *sql.DB, acquireTimeout time.Duration, prePing bool, logger *slog.Logger) *SQLiteAdapter {
	return &SQLiteAdapter{
		SQLiteBase: NewSQLiteBase(db, acquireTimeout, prePing, logger),
		now:        time.Now,
	}
}

func (a *SQLiteAdapter) Upsert(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error) {
	now := toMicros(a.now())
	var createdAt, updatedAt int64

	err := a.withConn(ctx, "upsert record", func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, consts.SQLiteQueries[consts.StmtUpsertRecord], id, string(value), now)
		return row.Scan(&createdAt, &updatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert record %s: %w", id, err)
	}

	rec := &domain.Record{
		ID:        id,
		Value:     value,
		CreatedAt: fromMicros(createdAt),
		UpdatedAt: fromMicros(updatedAt),
	}
	return &domain.UpsertResult{Record: rec, Created: createdAt == updatedAt}, nil
}

func (a *SQLiteAdapter) Get(ctx context.Context, id string) (*domain.Record, error) {
	var rec *domain.Record
	err := a.withConn(ctx, "get record", func(ctx context.Context, conn *sql.Conn) error {
		var err error
		rec, err = ScanSQLiteRecord(conn.QueryRowContext(ctx, consts.SQLiteQueries[consts.StmtGetRecord], id))
		if errors.Is(err, sql.ErrNoRows) {
			return app_errors.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

func (a *SQLiteAdapter) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := a.withConn(ctx, "delete record", func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, consts.SQLiteQueries[consts.StmtDeleteRecord], id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return deleted, nil
}

func (a *SQLiteAdapter) List(ctx context.Context, skip, limit int) ([]*domain.Record, error) {
	records := make([]*domain.Record, 0, min(limit, defaultRecordsCapacity))
	err := a.withConn(ctx, "list records", func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, consts.SQLiteQueries[consts.StmtListRecords], limit, skip)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := ScanSQLiteRecord(rows)
			if err != nil {
				return fmt.Errorf("failed to scan record row: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

func (a *SQLiteAdapter) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.withConn(ctx, "count records", func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, consts.SQLiteQueries[consts.StmtCountRecords]).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.withConn(ctx, "ping", func(ctx context.Context, conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}

func (a *SQLiteAdapter) Close() error {
	return a.DB.Close()
}
