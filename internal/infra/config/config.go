package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	customvalidator "github.com/spounge-ai/blitzfind/pkg/validator"
)

const envPrefix = "BLITZFIND"

type Config struct {
	Server         ServerConfig      `mapstructure:"server"`
	Persistence    PersistenceConfig `mapstructure:"persistence" validate:"required"`
	Cache          CacheConfig       `mapstructure:"cache"`
	Import         ImportConfig      `mapstructure:"import"`
	Telemetry      TelemetryConfig   `mapstructure:"telemetry"`
	ServiceVersion string            `mapstructure:"-"`
	BuildCommit    string            `mapstructure:"-"`
}

// Load reads configuration from path (or ./configs/config.yaml when empty),
// overlays BLITZFIND_* environment variables and validates the result.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.ServiceVersion = getenv(envPrefix+"_SERVICE_VERSION", "unknown")
	cfg.BuildCommit = getenv(envPrefix+"_BUILD_COMMIT", "unknown")

	return &cfg, nil
}

// Validate checks the struct tag rules.
func (c *Config) Validate() error {
	validate, err := customvalidator.New()
	if err != nil {
		return fmt.Errorf("failed to register custom validators: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", 8000)
	vip.SetDefault("server.mode", "development")
	vip.SetDefault("server.read_timeout", "10s")
	vip.SetDefault("server.write_timeout", "30s")
	vip.SetDefault("server.shutdown_timeout", "10s")
	vip.SetDefault("server.max_upload_bytes", 64<<20)
	vip.SetDefault("server.tls.enabled", false)
	vip.SetDefault("server.tls.cert_file", "")
	vip.SetDefault("server.tls.key_file", "")
	vip.SetDefault("server.tls.client_ca_file", "")
	vip.SetDefault("server.tls.client_auth", "")

	vip.SetDefault("persistence.driver", DriverSQLite)
	vip.SetDefault("persistence.url", "file:./blitzfind.db")
	vip.SetDefault("persistence.auto_migrate", true)
	vip.SetDefault("persistence.pool.size", 5)
	vip.SetDefault("persistence.pool.max_overflow", 10)
	vip.SetDefault("persistence.pool.recycle_age", "1h")
	vip.SetDefault("persistence.pool.idle_timeout", "5m")
	vip.SetDefault("persistence.pool.acquire_timeout", "5s")
	vip.SetDefault("persistence.pool.pre_ping", true)
	vip.SetDefault("persistence.pool.health_check_period", "30s")
	vip.SetDefault("persistence.circuit_breaker.enabled", false)
	vip.SetDefault("persistence.circuit_breaker.max_failures", 5)
	vip.SetDefault("persistence.circuit_breaker.reset_timeout", "30s")
	vip.SetDefault("persistence.retry.max_attempts", 3)
	vip.SetDefault("persistence.retry.initial_backoff", "25ms")
	vip.SetDefault("persistence.retry.max_backoff", "500ms")

	vip.SetDefault("cache.max_size", 10000)
	vip.SetDefault("cache.ttl", "5m")
	vip.SetDefault("cache.cleanup_interval", "1m")

	vip.SetDefault("import.max_concurrency", 8)
	vip.SetDefault("import.aws.region", "")
	vip.SetDefault("import.aws.endpoint", "")
	vip.SetDefault("import.aws.use_path_style", false)

	vip.SetDefault("telemetry.otlp_endpoint", "")
	vip.SetDefault("telemetry.service_name", "blitzfind")
	vip.SetDefault("telemetry.insecure", true)
}

// getenv returns an environment variable or a default value.
func getenv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
