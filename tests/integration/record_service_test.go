//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/internal/importer"
	"github.com/spounge-ai/blitzfind/internal/importer/source"
	"github.com/spounge-ai/blitzfind/internal/infra/persistence"
	"github.com/spounge-ai/blitzfind/internal/service"
	"github.com/spounge-ai/blitzfind/pkg/cache"
	"github.com/spounge-ai/blitzfind/pkg/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordService(t *testing.T) (service.RecordService, *cache.Cache[string, *domain.Record]) {
	t.Helper()
	truncate(t)
	repo := persistence.NewPSQLAdapter(dbpool, pgConfig.Pool.AcquireTimeout, logger)
	store := cache.New[string, *domain.Record](
		cache.WithCapacity[string, *domain.Record](100),
		cache.WithDefaultTTL[string, *domain.Record](time.Minute),
	)
	t.Cleanup(store.Stop)
	retry := execution.RetryPolicy{MaxAttempts: 3, InitialBackoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}
	return service.NewRecordService(repo, store, retry, logger), store
}

func TestRecordService_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	svc, store := newRecordService(t)

	_, err := svc.Write(ctx, "loc-1", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)

	_, err = svc.Read(ctx, "loc-1")
	require.NoError(t, err)
	_, err = svc.Read(ctx, "loc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.Stats().Hits)

	_, err = svc.Write(ctx, "loc-1", json.RawMessage(`{"v":2}`))
	require.NoError(t, err)
	got, err := svc.Read(ctx, "loc-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Value))

	deleted, err := svc.Delete(ctx, "loc-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = svc.Read(ctx, "loc-1")
	require.ErrorIs(t, err, app_errors.ErrNotFound)
}

func TestImporter_GeoJSONIntoPostgres(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRecordService(t)

	items, err := source.ParseGeoJSON([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"a","properties":{},"geometry":null},
		{"type":"Feature","id":"b","properties":{},"geometry":null},
		{"type":"Feature","id":"a","properties":{"v":2},"geometry":null}
	]}`))
	require.NoError(t, err)

	res := importer.New(svc, 4, logger).Import(ctx, items)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Updated)
	assert.Empty(t, res.Errors)

	page, err := svc.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	got, err := svc.Read(ctx, "a")
	require.NoError(t, err)
	assert.Contains(t, string(got.Value), `"v":2`)
}
