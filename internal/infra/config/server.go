package config

import "time"

// ServerConfig represents the HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gte=1,lte=65535"`
	Mode            string        `mapstructure:"mode" validate:"required,oneof=development production"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	TLS             TLS           `mapstructure:"tls"`
}

// TLS configures HTTPS termination in the server itself.
type TLS struct {
	Enabled      bool   `mapstructure:"enabled"`
	CertFile     string `mapstructure:"cert_file" validate:"required_if=Enabled true"`
	KeyFile      string `mapstructure:"key_file" validate:"required_if=Enabled true"`
	ClientCAFile string `mapstructure:"client_ca_file"`
	ClientAuth   string `mapstructure:"client_auth" validate:"omitempty,oneof=NoClientCert RequestClientCert RequireAnyClientCert VerifyClientCertIfGiven RequireAndVerifyClientCert"`
}
