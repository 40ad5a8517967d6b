package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spounge-ai/blitzfind/pkg/patterns/lifecycle"
)

type AlertLevel int

const (
	AlertLevelInfo AlertLevel = iota
	AlertLevelWarning
	AlertLevelCritical
)

func (l AlertLevel) slogLevel() slog.Level {
	switch l {
	case AlertLevelCritical:
		return slog.LevelError
	case AlertLevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// AlerterInterface defines a simple interface for sending alerts.
type AlerterInterface interface {
	SendAlert(level AlertLevel, message string, err error)
}

// LogAlerter sends alerts to a structured logger.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a LogAlerter) SendAlert(level AlertLevel, message string, err error) {
	attrs := []any{"component", "connection_monitor"}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	a.Logger.Log(context.Background(), level.slogLevel(), message, attrs...)
}

// Pinger is anything whose liveness can be checked, usually a RecordRepository.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthCheckTimeout = 5 * time.Second

// ConnectionMonitor periodically pings the store and reports transitions
// between healthy and unhealthy.
type ConnectionMonitor struct {
	pinger   Pinger
	alerter  AlerterInterface
	interval time.Duration

	mu        sync.RWMutex
	isHealthy bool
	lastErr   error

	cancel context.CancelFunc
	done   chan struct{}
}

var _ lifecycle.ManagedResource = (*ConnectionMonitor)(nil)

func NewConnectionMonitor(pinger Pinger, interval time.Duration, alerter AlerterInterface) *ConnectionMonitor {
	return &ConnectionMonitor{
		pinger:    pinger,
		alerter:   alerter,
		interval:  interval,
		isHealthy: true, // Assume healthy on startup
	}
}

func (cm *ConnectionMonitor) Name() string { return "connection_monitor" }

// Start pings once immediately and then every interval until Stop.
func (cm *ConnectionMonitor) Start(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cm.cancel = cancel
	cm.done = make(chan struct{})
	go cm.run(runCtx, cm.done)
	return nil
}

func (cm *ConnectionMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	cm.performHealthCheck(ctx)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.performHealthCheck(ctx)
		}
	}
}

func (cm *ConnectionMonitor) Stop(ctx context.Context) error {
	cm.mu.Lock()
	cancel, done := cm.cancel, cm.done
	cm.cancel, cm.done = nil, nil
	cm.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cm *ConnectionMonitor) performHealthCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	err := cm.pinger.Ping(checkCtx)
	if ctx.Err() != nil {
		return
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.lastErr = err
	if err != nil {
		if cm.isHealthy {
			cm.isHealthy = false
			if cm.alerter != nil {
				cm.alerter.SendAlert(AlertLevelCritical, "Database connection unhealthy", err)
			}
		}
	} else {
		if !cm.isHealthy {
			cm.isHealthy = true
			if cm.alerter != nil {
				cm.alerter.SendAlert(AlertLevelInfo, "Database connection recovered", nil)
			}
		}
	}
}

func (cm *ConnectionMonitor) Health(context.Context) lifecycle.HealthStatus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	status := lifecycle.HealthStatus{Ready: cm.isHealthy}
	if cm.lastErr != nil {
		status.Message = cm.lastErr.Error()
	}
	return status
}
