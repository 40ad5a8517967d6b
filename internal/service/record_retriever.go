package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/execution"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func (s *recordServiceImpl) Read(ctx context.Context, id string) (*domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Read")
	defer span.End()

	if err := domain.ValidateRecordID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err)
	}
	span.SetAttributes(attribute.String("record.id", id))

	if rec, ok := s.cache.Get(ctx, id); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return rec, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The shared load must outlive any single caller; each caller still
	// stops waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(id, func() (any, error) {
		return s.load(loadCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		span.SetAttributes(attribute.Bool("load.shared", res.Shared))
		if res.Err != nil {
			if !errors.Is(res.Err, app_errors.ErrNotFound) {
				span.RecordError(res.Err)
				span.SetStatus(codes.Error, "store read failed")
			}
			return nil, res.Err
		}
		return res.Val.(*domain.Record), nil
	}
}

// load reads id from the store and populates the cache unless an invalidation
// touched the key after the epoch snapshot.
func (s *recordServiceImpl) load(ctx context.Context, id string) (*domain.Record, error) {
	epoch := s.cache.Epoch(id)

	rec, err := execution.WithRetry(ctx, s.retry, func(ctx context.Context) (*domain.Record, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	if !s.cache.SetIfEpoch(ctx, id, rec, epoch) {
		s.logger.DebugContext(ctx, "skipped stale cache populate", "id", id)
	}
	return rec, nil
}
