package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"

	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnReset = errors.New("connection reset by peer")

// deadConnector hands out connections whose Ping fails for the first deadLeft opens.
type deadConnector struct {
	mu       sync.Mutex
	deadLeft int
	opened   int
	closed   int
}

func (d *deadConnector) Connect(context.Context) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	dead := d.deadLeft > 0
	if dead {
		d.deadLeft--
	}
	return &stubConn{owner: d, dead: dead}, nil
}

func (d *deadConnector) Driver() driver.Driver { return stubDriver{d} }

func (d *deadConnector) counts() (opened, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.closed
}

type stubDriver struct{ c *deadConnector }

func (s stubDriver) Open(string) (driver.Conn, error) { return s.c.Connect(context.Background()) }

type stubConn struct {
	owner *deadConnector
	dead  bool
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *stubConn) Close() error {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	c.owner.closed++
	return nil
}

func (c *stubConn) Ping(context.Context) error {
	if c.dead {
		return errConnReset
	}
	return nil
}

func newStubBase(t *testing.T, deadConns int) (*SQLiteBase, *deadConnector) {
	t.Helper()
	connector := &deadConnector{deadLeft: deadConns}
	db := sql.OpenDB(connector)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteBase(db, time.Second, true, testLogger()), connector
}

func TestSQLiteBase_PrePingReplacesDeadConnection(t *testing.T) {
	base, connector := newStubBase(t, 1)

	calls := 0
	err := base.withConn(context.Background(), "Get", func(context.Context, *sql.Conn) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	opened, closed := connector.counts()
	assert.Equal(t, 2, opened, "a replacement connection is opened")
	assert.Equal(t, 1, closed, "the dead connection is closed, not returned to the pool")
	assert.Equal(t, 0, base.DB.Stats().InUse)
}

func TestSQLiteBase_TwoDeadConnectionsIsTransient(t *testing.T) {
	base, connector := newStubBase(t, 2)

	err := base.withConn(context.Background(), "Get", func(context.Context, *sql.Conn) error {
		t.Fatal("fn must not run on a dead connection")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeadConnection)
	assert.ErrorIs(t, err, app_errors.ErrTransient)
	assert.ErrorIs(t, err, errConnReset)

	opened, closed := connector.counts()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 2, closed)
}

func TestSQLiteBase_NoPrePingSkipsPing(t *testing.T) {
	connector := &deadConnector{deadLeft: 1}
	db := sql.OpenDB(connector)
	t.Cleanup(func() { _ = db.Close() })
	base := NewSQLiteBase(db, time.Second, false, testLogger())

	require.NoError(t, base.withConn(context.Background(), "Get", func(context.Context, *sql.Conn) error { return nil }))
	opened, _ := connector.counts()
	assert.Equal(t, 1, opened)
}
