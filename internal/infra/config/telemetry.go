package config

// TelemetryConfig enables OTLP trace export when OTLPEndpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" validate:"required"`
	Insecure     bool   `mapstructure:"insecure"`
}
