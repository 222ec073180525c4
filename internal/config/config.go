package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/storefront-sync/pkg/config"
	"github.com/utafrali/storefront-sync/pkg/tracing"
)

// Config holds all configuration for the storefront sync server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Remote storefront API
	StorefrontAPIURL     string        `env:"STOREFRONT_API_URL" envDefault:"http://localhost:8081"`
	StorefrontAPITimeout time.Duration `env:"STOREFRONT_API_TIMEOUT" envDefault:"15s"`

	// Cache and workspaces
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"180s"`
	IdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	FlashDuration time.Duration `env:"FLASH_DURATION" envDefault:"3s"`
	WishlistName  string        `env:"WISHLIST_NAME" envDefault:"wishlist"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionIssuer string        `env:"SESSION_ISSUER" envDefault:"storefront"`
	GuestTokenTTL time.Duration `env:"GUEST_TOKEN_TTL" envDefault:"720h"`
	CookieSecure  bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	SignInPath    string        `env:"SIGN_IN_PATH" envDefault:"/login"`

	// Redis snapshots
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Edge
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	Tracing tracing.Config
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront-sync config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.StorefrontAPIURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("STOREFRONT_API_URL must be an absolute URL, got %q", c.StorefrontAPIURL)
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.IdleTTL <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL and SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.FlashDuration < 0 {
		return fmt.Errorf("FLASH_DURATION must not be negative, got %s", c.FlashDuration)
	}
	if strings.TrimSpace(c.WishlistName) == "" {
		return fmt.Errorf("WISHLIST_NAME must not be blank")
	}
	if !strings.HasPrefix(c.SignInPath, "/") || strings.HasPrefix(c.SignInPath, "//") {
		return fmt.Errorf("SIGN_IN_PATH must be a local path, got %q", c.SignInPath)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate)
	}
	return nil
}

// RedisAddr returns host:port of the snapshot store.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
