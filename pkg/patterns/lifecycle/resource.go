package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

// ManagedResource defines a component with a managed lifecycle.
type ManagedResource interface {
	// Name identifies the resource in logs and health reports.
	Name() string

	// Start initializes and starts the component. It must not block.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component, releasing any resources. It should be idempotent.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) HealthStatus
}

// Manager starts resources in order and stops them in reverse order.
type Manager struct {
	mu        sync.RWMutex
	resources []ManagedResource
	started   []ManagedResource
	logger    *slog.Logger
}

func NewManager(logger *slog.Logger, resources ...ManagedResource) *Manager {
	return &Manager{resources: resources, logger: logger}
}

// Add appends resources after the ones already registered. Call it before Start.
func (m *Manager) Add(resources ...ManagedResource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, resources...)
}

// Start starts every resource. On the first failure the already started ones are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	resources := append([]ManagedResource(nil), m.resources...)
	m.mu.RUnlock()

	for _, r := range resources {
		m.logger.InfoContext(ctx, "starting resource", "resource", r.Name())
		if err := r.Start(ctx); err != nil {
			stopErr := m.Stop(ctx)
			return errors.Join(fmt.Errorf("start %s: %w", r.Name(), err), stopErr)
		}
		m.started = append(m.started, r)
	}
	return nil
}

// Stop stops the started resources in reverse order and joins their errors.
func (m *Manager) Stop(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		r := m.started[i]
		m.logger.InfoContext(ctx, "stopping resource", "resource", r.Name())
		if err := r.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", r.Name(), err))
		}
	}
	m.started = nil
	return errors.Join(errs...)
}

// Health reports every resource by name.
func (m *Manager) Health(ctx context.Context) map[string]HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]HealthStatus, len(m.resources))
	for _, r := range m.resources {
		out[r.Name()] = r.Health(ctx)
	}
	return out
}
