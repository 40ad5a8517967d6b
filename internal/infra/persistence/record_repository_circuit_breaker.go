package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/patterns/circuitbreaker"
)

// RecordRepositoryCircuitBreaker adds a circuit breaker to a RecordRepository.
// Only transient failures trip it. It uses one breaker per result type to avoid
// runtime type assertions; each trips independently.
type RecordRepositoryCircuitBreaker struct {
	repo          domain.RecordRepository
	upsertBreaker *circuitbreaker.Breaker[*domain.UpsertResult]
	getBreaker    *circuitbreaker.Breaker[*domain.Record]
	listBreaker   *circuitbreaker.Breaker[[]*domain.Record]
	boolBreaker   *circuitbreaker.Breaker[bool]
	countBreaker  *circuitbreaker.Breaker[int64]
}

var _ domain.RecordRepository = (*RecordRepositoryCircuitBreaker)(nil)

// NewRecordRepositoryCircuitBreaker wraps repo with circuit breakers.
func NewRecordRepositoryCircuitBreaker(repo domain.RecordRepository, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) *RecordRepositoryCircuitBreaker {
	return &RecordRepositoryCircuitBreaker{
		repo:          repo,
		upsertBreaker: newBreaker[*domain.UpsertResult]("upsert", maxFailures, resetTimeout, logger),
		getBreaker:    newBreaker[*domain.Record]("get", maxFailures, resetTimeout, logger),
		listBreaker:   newBreaker[[]*domain.Record]("list", maxFailures, resetTimeout, logger),
		boolBreaker:   newBreaker[bool]("delete", maxFailures, resetTimeout, logger),
		countBreaker:  newBreaker[int64]("count", maxFailures, resetTimeout, logger),
	}
}

func newBreaker[T any](name string, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) *circuitbreaker.Breaker[T] {
	return circuitbreaker.New(maxFailures,
		circuitbreaker.WithResetTimeout[T](resetTimeout),
		circuitbreaker.WithFailurePredicate[T](app_errors.IsTransient),
		circuitbreaker.WithStateChangeHook[T](func(from, to circuitbreaker.State) {
			logger.Warn("store circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		}),
	)
}

func openErr(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", app_errors.ErrTransient, err)
	}
	return err
}

func (cb *RecordRepositoryCircuitBreaker) Upsert(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error) {
	res, err := cb.upsertBreaker.Execute(ctx, func(ctx context.Context) (*domain.UpsertResult, error) {
		return cb.repo.Upsert(ctx, id, value)
	})
	return res, openErr(err)
}

func (cb *RecordRepositoryCircuitBreaker) Get(ctx context.Context, id string) (*domain.Record, error) {
	rec, err := cb.getBreaker.Execute(ctx, func(ctx context.Context) (*domain.Record, error) {
		return cb.repo.Get(ctx, id)
	})
	return rec, openErr(err)
}

func (cb *RecordRepositoryCircuitBreaker) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := cb.boolBreaker.Execute(ctx, func(ctx context.Context) (bool, error) {
		return cb.repo.Delete(ctx, id)
	})
	return deleted, openErr(err)
}

func (cb *RecordRepositoryCircuitBreaker) List(ctx context.Context, skip, limit int) ([]*domain.Record, error) {
	records, err := cb.listBreaker.Execute(ctx, func(ctx context.Context) ([]*domain.Record, error) {
		return cb.repo.List(ctx, skip, limit)
	})
	return records, openErr(err)
}

func (cb *RecordRepositoryCircuitBreaker) Count(ctx context.Context) (int64, error) {
	n, err := cb.countBreaker.Execute(ctx, func(ctx context.Context) (int64, error) {
		return cb.repo.Count(ctx)
	})
	return n, openErr(err)
}

// Ping bypasses the breakers so the connection monitor can observe recovery.
func (cb *RecordRepositoryCircuitBreaker) Ping(ctx context.Context) error {
	return cb.repo.Ping(ctx)
}

func (cb *RecordRepositoryCircuitBreaker) Close() error {
	return cb.repo.Close()
}
