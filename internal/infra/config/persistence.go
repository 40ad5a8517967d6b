package config

import "time"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// PersistenceConfig represents the persistence configuration.
type PersistenceConfig struct {
	Driver         string               `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	URL            string               `mapstructure:"url" validate:"required"`
	AutoMigrate    bool                 `mapstructure:"auto_migrate"`
	Pool           PoolConfig           `mapstructure:"pool"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retry          RetryConfig          `mapstructure:"retry"`
}

// PoolConfig represents the connection pool policy shared by both drivers.
// Up to Size connections are kept open; Size+MaxOverflow is the hard ceiling.
type PoolConfig struct {
	Size              int           `mapstructure:"size" validate:"gte=1"`
	MaxOverflow       int           `mapstructure:"max_overflow" validate:"gte=0"`
	RecycleAge        time.Duration `mapstructure:"recycle_age" validate:"gte=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	AcquireTimeout    time.Duration `mapstructure:"acquire_timeout" validate:"gt=0"`
	PrePing           bool          `mapstructure:"pre_ping"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period" validate:"gt=0"`
}

// MaxConns is the maximum number of live connections.
func (p PoolConfig) MaxConns() int {
	return p.Size + p.MaxOverflow
}

// CircuitBreakerConfig holds settings for the persistence circuit breaker.
type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxFailures  int           `mapstructure:"max_failures" validate:"required_if=Enabled true,omitempty,gte=1"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// RetryConfig controls retries of transient store failures.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
}
