//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/internal/infra/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T) *persistence.PSQLAdapter {
	t.Helper()
	truncate(t)
	// The adapter shares the suite pool, so it is never closed here.
	return persistence.NewPSQLAdapter(dbpool, pgConfig.Pool.AcquireTimeout, logger)
}

func TestPSQLAdapter_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)

	res, err := a.Upsert(ctx, "BLD001", json.RawMessage(`{"type":"Feature","properties":{"h":12}}`))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Record.CreatedAt.Equal(res.Record.UpdatedAt))

	got, err := a.Get(ctx, "BLD001")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Feature","properties":{"h":12}}`, string(got.Value))

	again, err := a.Upsert(ctx, "BLD001", json.RawMessage(`{"type":"Feature","properties":{"h":13}}`))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.True(t, again.Record.CreatedAt.Equal(res.Record.CreatedAt))
	assert.True(t, again.Record.UpdatedAt.After(res.Record.UpdatedAt))
}

func TestPSQLAdapter_GetMissing(t *testing.T) {
	a := newAdapter(t)
	_, err := a.Get(context.Background(), "nope")
	require.ErrorIs(t, err, app_errors.ErrNotFound)
}

func TestPSQLAdapter_Delete(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)

	_, err := a.Upsert(ctx, "gone", json.RawMessage(`1`))
	require.NoError(t, err)

	deleted, err := a.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = a.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPSQLAdapter_ListAndCount(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)

	for i := 4; i >= 0; i-- {
		_, err := a.Upsert(ctx, fmt.Sprintf("id-%d", i), json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	page, err := a.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "id-1", page[0].ID)
	assert.Equal(t, "id-2", page[1].ID)

	page, err = a.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPSQLAdapter_ConcurrentUpsertsSameID(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Upsert(ctx, "hot", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
			if !assert.NoError(t, err) {
				return
			}
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPSQLAdapter_AcquireTimeoutIsTransient(t *testing.T) {
	ctx := context.Background()
	truncate(t)

	cfg := pgConfig
	cfg.Pool.Size = 1
	cfg.Pool.MaxOverflow = 0
	small, err := persistence.NewConnectionPool(ctx, cfg, devServer, logger)
	require.NoError(t, err)
	defer small.Close()

	held, err := small.Acquire(ctx)
	require.NoError(t, err)
	defer held.Release()

	a := persistence.NewPSQLAdapter(small, 100*time.Millisecond, logger)
	_, err = a.Get(ctx, "any")
	require.ErrorIs(t, err, app_errors.ErrTransient)
}

func TestPSQLAdapter_PrePingReplacesTerminatedConnection(t *testing.T) {
	ctx := context.Background()
	truncate(t)

	cfg := pgConfig
	cfg.Pool.Size = 1
	cfg.Pool.MaxOverflow = 0
	cfg.Pool.PrePing = true
	small, err := persistence.NewConnectionPool(ctx, cfg, devServer, logger)
	require.NoError(t, err)
	defer small.Close()

	conn, err := small.Acquire(ctx)
	require.NoError(t, err)
	pid := conn.Conn().PgConn().PID()
	conn.Release()

	_, err = dbpool.Exec(ctx, "SELECT pg_terminate_backend($1)", pid)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		var alive bool
		err := dbpool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_stat_activity WHERE pid = $1)", pid).Scan(&alive)
		return err == nil && !alive
	}, 5*time.Second, 20*time.Millisecond)

	a := persistence.NewPSQLAdapter(small, time.Second, logger)
	_, err = a.Get(ctx, "missing")
	require.ErrorIs(t, err, app_errors.ErrNotFound)

	conn, err = small.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	assert.NotEqual(t, pid, conn.Conn().PgConn().PID())
}

func TestPSQLAdapter_Ping(t *testing.T) {
	a := newAdapter(t)
	require.NoError(t, a.Ping(context.Background()))
}
