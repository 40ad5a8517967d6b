package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type flakyPinger struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls.Add(1)
	if p.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

type recordingAlerter struct {
	mu     sync.Mutex
	levels []AlertLevel
}

func (a *recordingAlerter) SendAlert(level AlertLevel, _ string, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.levels = append(a.levels, level)
}

func (a *recordingAlerter) snapshot() []AlertLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AlertLevel(nil), a.levels...)
}

func TestConnectionMonitor_Transitions(t *testing.T) {
	defer goleak.VerifyNone(t)

	pinger := &flakyPinger{}
	alerter := &recordingAlerter{}
	cm := NewConnectionMonitor(pinger, 5*time.Millisecond, alerter)

	require.NoError(t, cm.Start(context.Background()))
	assert.Eventually(t, func() bool { return pinger.calls.Load() > 0 }, time.Second, time.Millisecond)
	assert.True(t, cm.Health(context.Background()).Ready)

	pinger.fail.Store(true)
	assert.Eventually(t, func() bool { return !cm.Health(context.Background()).Ready }, time.Second, time.Millisecond)
	status := cm.Health(context.Background())
	assert.False(t, status.Ready)
	assert.Contains(t, status.Message, "connection refused")

	pinger.fail.Store(false)
	assert.Eventually(t, func() bool { return cm.Health(context.Background()).Ready }, time.Second, time.Millisecond)

	require.NoError(t, cm.Stop(context.Background()))
	assert.Equal(t, []AlertLevel{AlertLevelCritical, AlertLevelInfo}, alerter.snapshot())
}

func TestConnectionMonitor_StopWithoutStart(t *testing.T) {
	cm := NewConnectionMonitor(&flakyPinger{}, time.Second, nil)
	assert.NoError(t, cm.Stop(context.Background()))
	assert.Equal(t, "connection_monitor", cm.Name())
}

func TestConnectionMonitor_StartTwiceRunsOneLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	cm := NewConnectionMonitor(&flakyPinger{}, time.Hour, nil)
	require.NoError(t, cm.Start(context.Background()))
	require.NoError(t, cm.Start(context.Background()))
	require.NoError(t, cm.Stop(context.Background()))
	require.NoError(t, cm.Stop(context.Background()))
}
