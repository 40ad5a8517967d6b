package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/cache"
	"github.com/spounge-ai/blitzfind/pkg/execution"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("github.com/spounge-ai/blitzfind/internal/service")

// RecordService is the single entry point for record access. It keeps the
// in-memory cache consistent with the store: reads go through the cache,
// writes and deletes hit the store and then invalidate.
//
// Records returned by Read are shared with the cache and must not be mutated.
type RecordService interface {
	Read(ctx context.Context, id string) (*domain.Record, error)
	Write(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, skip, limit int) (*domain.Page, error)
	CacheStats() cache.Stats
}

type recordServiceImpl struct {
	repo   domain.RecordRepository
	cache  cache.Store[string, *domain.Record]
	loads  singleflight.Group
	retry  execution.RetryPolicy
	logger *slog.Logger
}

// NewRecordService builds the record service. A nil Retryable in the policy retries
// transient store errors only.
func NewRecordService(repo domain.RecordRepository, store cache.Store[string, *domain.Record], retry execution.RetryPolicy, logger *slog.Logger) RecordService {
	if retry.Retryable == nil {
		retry.Retryable = app_errors.IsTransient
	}
	return &recordServiceImpl{
		repo:   repo,
		cache:  store,
		retry:  retry,
		logger: logger,
	}
}

func (s *recordServiceImpl) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// invalidate drops the cached entry and detaches any in-flight load for id, so
// readers arriving after a write never join a load that started before it.
func (s *recordServiceImpl) invalidate(ctx context.Context, id string) {
	s.cache.Delete(ctx, id)
	s.loads.Forget(id)
}
