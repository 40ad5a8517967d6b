package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	consts "github.com/spounge-ai/blitzfind/internal/constants"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
)

const defaultRecordsCapacity = 100

type PSQLAdapter struct {
	*PostgresBase
	now func() time.Time
}

var _ domain.RecordRepository = (*PSQLAdapter)(nil)

func NewPSQLAdapter(db *pgxpool.Pool, acquireTimeout time.Duration, logger *slog.Logger) *PSQLAdapter {
	return &PSQLAdapter{
		PostgresBase: NewPostgresBase(db, acquireTimeout, logger),
		now:          time.Now,
	}
}

func (a *PSQLAdapter) Upsert(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error) {
	// TIMESTAMPTZ keeps microseconds; truncating keeps the returned row equal to what was sent.
	now := a.now().UTC().Truncate(time.Microsecond)
	rec := &domain.Record{ID: id, Value: value}

	err := a.withConn(ctx, "upsert record", func(ctx context.Context, conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, consts.StmtUpsertRecord, id, value, now)
		return row.Scan(&rec.CreatedAt, &rec.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert record %s: %w", id, err)
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &domain.UpsertResult{Record: rec, Created: rec.CreatedAt.Equal(rec.UpdatedAt)}, nil
}

func (a *PSQLAdapter) Get(ctx context.Context, id string) (*domain.Record, error) {
	var rec *domain.Record
	err := a.withConn(ctx, "get record", func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		rec, err = ScanPgRecord(conn.QueryRow(ctx, consts.StmtGetRecord, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return app_errors.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

func (a *PSQLAdapter) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := a.withConn(ctx, "delete record", func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, consts.StmtDeleteRecord, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return deleted, nil
}

func (a *PSQLAdapter) List(ctx context.Context, skip, limit int) ([]*domain.Record, error) {
	records := make([]*domain.Record, 0, min(limit, defaultRecordsCapacity))
	err := a.withConn(ctx, "list records", func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, consts.StmtListRecords, limit, skip)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := ScanPgRecord(rows)
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

func (a *PSQLAdapter) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.withConn(ctx, "count records", func(ctx context.Context, conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, consts.StmtCountRecords).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (a *PSQLAdapter) Ping(ctx context.Context) error {
	return a.withConn(ctx, "ping", func(ctx context.Context, conn *pgxpool.Conn) error {
		return conn.Ping(ctx)
	})
}

func (a *PSQLAdapter) Close() error {
	a.DB.Close()
	return nil
}
