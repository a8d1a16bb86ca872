// Package config loads service configuration from environment variables
// with defaults and validation.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable of the service. Values come from CHATLINE_*
// environment variables with the defaults below.
type Config struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8080"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./chatline.db"`

	// JWTSecret signs and verifies admission tokens. There is no default:
	// a missing secret must fail admission, not silently accept anything.
	JWTSecret string `envconfig:"JWT_SECRET"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	// Sliding-window rate limit on message sends.
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"30"`
	RateLimitSweep  time.Duration `envconfig:"RATE_LIMIT_SWEEP" default:"5m"`

	MaxMessageLength int `envconfig:"MAX_MESSAGE_LENGTH" default:"2000"`
	DefaultPageSize  int `envconfig:"DEFAULT_PAGE_SIZE" default:"50"`

	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// WebSocket heartbeat. PongTimeout is the read deadline; pings go out
	// at PingInterval and must be under the deadline.
	PingInterval time.Duration `envconfig:"PING_INTERVAL" default:"30s"`
	PongTimeout  time.Duration `envconfig:"PONG_TIMEOUT" default:"60s"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("chatline", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("rate limit max must be positive")
	}
	if c.RateLimitSweep <= 0 {
		return fmt.Errorf("rate limit sweep interval must be positive")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}
	if c.PingInterval <= 0 || c.PongTimeout <= 0 {
		return fmt.Errorf("heartbeat intervals must be positive")
	}
	if c.PingInterval >= c.PongTimeout {
		return fmt.Errorf("ping interval must be shorter than pong timeout")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
