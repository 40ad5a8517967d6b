package config

import "time"

// CacheConfig sizes the in-process record cache.
type CacheConfig struct {
	MaxSize         int           `mapstructure:"max_size" validate:"gte=1"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
}
