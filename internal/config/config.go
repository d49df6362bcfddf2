// Package config holds process configuration read from the environment.
// CLI flags override individual fields after loading.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is the runtime configuration shared by every command.
type Config struct {
	LogLevel  string `env:"ACTIONFLOW_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"ACTIONFLOW_LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`

	HTTPAddr        string        `env:"ACTIONFLOW_HTTP_ADDR" envDefault:"127.0.0.1:8080" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `env:"ACTIONFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gte=0"`

	RedisAddr     string        `env:"ACTIONFLOW_REDIS_ADDR"`
	RedisPassword string        `env:"ACTIONFLOW_REDIS_PASSWORD"`
	RedisDB       int           `env:"ACTIONFLOW_REDIS_DB" envDefault:"0" validate:"gte=0"`
	RedisPrefix   string        `env:"ACTIONFLOW_REDIS_PREFIX" envDefault:"actionflow:state:"`
	StateTTL      time.Duration `env:"ACTIONFLOW_STATE_TTL" envDefault:"0s" validate:"gte=0"`

	APIBaseURL      string `env:"ACTIONFLOW_API_BASE_URL" validate:"omitempty,url"`
	AllowCustomHTML bool   `env:"ACTIONFLOW_ALLOW_CUSTOM_HTML" envDefault:"false"`
	UserAgent       string `env:"ACTIONFLOW_USER_AGENT" envDefault:"actionflow"`
	Variant         string `env:"ACTIONFLOW_VARIANT"`

	OTelEndpoint string `env:"ACTIONFLOW_OTEL_ENDPOINT" validate:"omitempty,url"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field rules. Call it again after applying flag overrides.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
