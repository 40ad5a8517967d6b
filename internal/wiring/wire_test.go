package wiring

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	infra_config "github.com/spounge-ai/blitzfind/internal/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *infra_config.Config {
	t.Helper()
	return &infra_config.Config{
		Server: infra_config.ServerConfig{
			Port:            0,
			Mode:            "development",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxUploadBytes:  1 << 20,
		},
		Persistence: infra_config.PersistenceConfig{
			Driver:      infra_config.DriverSQLite,
			URL:         "file:" + filepath.Join(t.TempDir(), "wire.db"),
			AutoMigrate: true,
			Pool: infra_config.PoolConfig{
				Size:              2,
				MaxOverflow:       2,
				RecycleAge:        time.Hour,
				IdleTimeout:       time.Minute,
				AcquireTimeout:    2 * time.Second,
				PrePing:           true,
				HealthCheckPeriod: time.Second,
			},
			Retry: infra_config.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		},
		Cache:          infra_config.CacheConfig{MaxSize: 10, TTL: time.Minute, CleanupInterval: time.Minute},
		Import:         infra_config.ImportConfig{MaxConcurrency: 2},
		ServiceVersion: "test",
	}
}

func TestProvideDependencies_ServesRecords(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := ProvideDependencies(ctx, testConfig(t), logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	_, err = c.Records.Write(ctx, "BLD001", json.RawMessage(`{"h":3}`))
	require.NoError(t, err)

	srv, err := c.NewHTTPServer()
	require.NoError(t, err)
	manager := c.Lifecycle(srv)
	require.NoError(t, manager.Start(ctx))
	t.Cleanup(func() { require.NoError(t, manager.Stop(context.Background())) })

	client := &http.Client{Timeout: 5 * time.Second}
	t.Cleanup(client.CloseIdleConnections)

	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	resp, err := client.Get("http://127.0.0.1:" + port + "/data/BLD001")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID    string          `json:"id"`
		Value json.RawMessage `json:"value"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "BLD001", body.ID)
	assert.JSONEq(t, `{"h":3}`, string(body.Value))

	health := manager.Health(ctx)
	assert.True(t, health["http_server"].Ready)
	assert.Contains(t, health, "connection_monitor")

	hresp, err := client.Get("http://127.0.0.1:" + port + "/healthz")
	require.NoError(t, err)
	defer hresp.Body.Close()
	assert.Equal(t, http.StatusOK, hresp.StatusCode)
	var healthBody struct {
		Status     string                     `json:"status"`
		Components map[string]json.RawMessage `json:"components"`
	}
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&healthBody))
	assert.Equal(t, "ok", healthBody.Status)
	assert.Contains(t, healthBody.Components, "http_server")
	assert.Contains(t, healthBody.Components, "connection_monitor")
}

func TestProvideDependencies_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Persistence.Driver = "mysql"
	cfg.Persistence.AutoMigrate = false

	_, err := ProvideDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestConfigureTLS(t *testing.T) {
	tlsConfig, err := ConfigureTLS(infra_config.TLS{})
	require.NoError(t, err)
	assert.Nil(t, tlsConfig)

	_, err = ConfigureTLS(infra_config.TLS{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"})
	require.Error(t, err)
}
