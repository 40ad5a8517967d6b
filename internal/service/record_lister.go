package service

import (
	"context"
	"fmt"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/execution"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// List pages through the store ordered by id. It never reads or fills the cache.
func (s *recordServiceImpl) List(ctx context.Context, skip, limit int) (*domain.Page, error) {
	ctx, span := tracer.Start(ctx, "List")
	defer span.End()

	if err := domain.ValidatePage(skip, limit); err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err)
	}
	span.SetAttributes(attribute.Int("page.skip", skip), attribute.Int("page.limit", limit))

	records, err := execution.WithRetry(ctx, s.retry, func(ctx context.Context) ([]*domain.Record, error) {
		return s.repo.List(ctx, skip, limit)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store list failed")
		return nil, err
	}

	total, err := execution.WithRetry(ctx, s.retry, func(ctx context.Context) (int64, error) {
		return s.repo.Count(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store count failed")
		return nil, err
	}

	return &domain.Page{Total: total, Skip: skip, Limit: limit, Records: records}, nil
}
