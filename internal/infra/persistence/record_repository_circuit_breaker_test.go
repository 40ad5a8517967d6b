package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/patterns/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	getErr error
	calls  int
}

func (s *stubRepo) Upsert(context.Context, string, json.RawMessage) (*domain.UpsertResult, error) {
	return &domain.UpsertResult{Record: &domain.Record{}, Created: true}, nil
}

func (s *stubRepo) Get(_ context.Context, id string) (*domain.Record, error) {
	s.calls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &domain.Record{ID: id}, nil
}

func (s *stubRepo) Delete(context.Context, string) (bool, error)             { return true, nil }
func (s *stubRepo) List(context.Context, int, int) ([]*domain.Record, error) { return nil, nil }
func (s *stubRepo) Count(context.Context) (int64, error)                     { return 0, nil }
func (s *stubRepo) Ping(context.Context) error                               { return nil }
func (s *stubRepo) Close() error                                             { return nil }

func TestRecordRepositoryCircuitBreaker_OpensOnTransientFailures(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{getErr: fmt.Errorf("get: %w", app_errors.ErrTransient)}
	cb := NewRecordRepositoryCircuitBreaker(repo, 2, time.Hour, testLogger())

	for i := 0; i < 2; i++ {
		_, err := cb.Get(ctx, "k")
		require.ErrorIs(t, err, app_errors.ErrTransient)
	}

	_, err := cb.Get(ctx, "k")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, err, app_errors.ErrTransient)
	assert.Equal(t, 2, repo.calls)

	// Other operations use their own breaker.
	_, err = cb.Upsert(ctx, "k", json.RawMessage(`1`))
	assert.NoError(t, err)
}

func TestRecordRepositoryCircuitBreaker_IgnoresNotFound(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{getErr: app_errors.ErrNotFound}
	cb := NewRecordRepositoryCircuitBreaker(repo, 1, time.Hour, testLogger())

	for i := 0; i < 5; i++ {
		_, err := cb.Get(ctx, "k")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	}
	assert.Equal(t, 5, repo.calls)
}
