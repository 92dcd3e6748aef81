package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL for cart storage (SHOP_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Backend     BackendConfig
	Catalog     CatalogConfig
	Cart        CartConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// BackendConfig points at the store backend the API brokers orders to.
type BackendConfig struct {
	BaseURL string        `usage:"Store backend base URL" flag:"backend-url"`
	Token   string        `usage:"Bearer token for backend requests" flag:"backend-token"`
	Timeout time.Duration `default:"10s" usage:"Per-request backend timeout" flag:"backend-timeout"`
}

// CatalogConfig controls the product mirror cache and its staleness probe.
type CatalogConfig struct {
	CacheTTL   time.Duration `default:"1m" usage:"Full product list cache TTL" flag:"catalog-cache-ttl"`
	MaxFeedAge time.Duration `default:"48h" usage:"Mirror age before the readiness probe reports stale" flag:"catalog-max-feed-age"`
}

// CartConfig controls cart persistence.
type CartConfig struct {
	TTL time.Duration `default:"720h" usage:"Idle cart retention" flag:"cart-ttl"`
}

// CheckoutConfig controls in-memory checkout session retention.
type CheckoutConfig struct {
	SessionTTL time.Duration `default:"24h" usage:"Idle checkout session retention" flag:"checkout-session-ttl"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("redis URL is required: set SHOP_REDIS_URL or REDIS_URL")
	}
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("backend URL is required: set SHOP_BACKEND_BASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
