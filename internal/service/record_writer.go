package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/execution"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrInvalidValue = errors.New("value is not valid JSON")

// Write upserts value under id. The cache entry is invalidated before Write
// returns, also when the store call failed, since a failed call may still have
// been applied. The cache is not pre-warmed: two concurrent writers could
// otherwise leave the older value cached.
func (s *recordServiceImpl) Write(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error) {
	ctx, span := tracer.Start(ctx, "Write")
	defer span.End()

	if err := domain.ValidateRecordID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err)
	}
	if len(value) == 0 || !json.Valid(value) {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, ErrInvalidValue)
	}
	span.SetAttributes(attribute.String("record.id", id))

	res, err := execution.WithRetry(ctx, s.retry, func(ctx context.Context) (*domain.UpsertResult, error) {
		return s.repo.Upsert(ctx, id, value)
	})
	s.invalidate(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		return nil, err
	}

	span.SetAttributes(attribute.Bool("record.created", res.Created))
	s.logger.DebugContext(ctx, "record written", "id", id, "created", res.Created)
	return res, nil
}

// Delete removes id from the store and the cache. It reports whether a record existed.
func (s *recordServiceImpl) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	if err := domain.ValidateRecordID(id); err != nil {
		return false, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err)
	}
	span.SetAttributes(attribute.String("record.id", id))

	deleted, err := execution.WithRetry(ctx, s.retry, func(ctx context.Context) (bool, error) {
		return s.repo.Delete(ctx, id)
	})
	s.invalidate(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store delete failed")
		return false, err
	}

	span.SetAttributes(attribute.Bool("record.deleted", deleted))
	s.logger.DebugContext(ctx, "record deleted", "id", id, "found", deleted)
	return deleted, nil
}
