package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Record is the stored unit: an opaque JSON document addressed by ID.
type Record struct {
	ID        string          `json:"id"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UpsertResult reports the stored record and whether the upsert inserted it.
type UpsertResult struct {
	Record  *Record
	Created bool
}

// Page is one window of a listing.
type Page struct {
	Total   int64     `json:"total"`
	Skip    int       `json:"skip"`
	Limit   int       `json:"limit"`
	Records []*Record `json:"data"`
}

// RecordRepository defines the durable store behind the cache.
type RecordRepository interface {
	Upsert(ctx context.Context, id string, value json.RawMessage) (*UpsertResult, error)
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, skip, limit int) ([]*Record, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
