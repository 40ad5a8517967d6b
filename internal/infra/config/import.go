package config

// ImportConfig controls bulk imports.
type ImportConfig struct {
	MaxConcurrency int       `mapstructure:"max_concurrency" validate:"gte=1,lte=256"`
	AWS            AWSConfig `mapstructure:"aws"`
}

// AWSConfig represents the AWS configuration used by the S3 import source.
// Empty values fall back to the SDK's default credential and region chain.
type AWSConfig struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint" validate:"omitempty,url"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}
