package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spounge-ai/blitzfind/internal/domain"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ScanPgRecord scans id, value, created_at, updated_at from a PostgreSQL row.
func ScanPgRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var valueRaw []byte

	if err := row.Scan(&rec.ID, &valueRaw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.Value = json.RawMessage(valueRaw)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// ScanSQLiteRecord scans id, value, created_at, updated_at from a SQLite row,
// where timestamps are unix microseconds.
func ScanSQLiteRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var value string
	var createdAt, updatedAt int64

	if err := row.Scan(&rec.ID, &value, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if !json.Valid([]byte(value)) {
		return nil, fmt.Errorf("record %s holds invalid json", rec.ID)
	}

	rec.Value = json.RawMessage(value)
	rec.CreatedAt = fromMicros(createdAt)
	rec.UpdatedAt = fromMicros(updatedAt)
	return &rec, nil
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
