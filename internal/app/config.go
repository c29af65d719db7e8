package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (PRATO_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (PRATO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (PRATO_API_KEY_PEPPER)" flag:"api-key-pepper"`

	Snapshot  SnapshotConfig
	Delivery  DeliveryConfig
	PIX       PIXConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// SnapshotConfig selects where the order store mirrors its state.
type SnapshotConfig struct {
	// Backend is "postgres" or "file". The catalog, coupons, and API keys
	// always live in PostgreSQL; this only moves the order snapshot.
	Backend string `default:"postgres" usage:"Order snapshot backend (postgres|file)"`
	Path    string `default:"orders.json" usage:"Snapshot file path (file backend only)"`
}

// DeliveryConfig holds order placement defaults.
type DeliveryConfig struct {
	Fee           string `default:"5.00" usage:"Flat delivery fee in BRL"`
	EstimatedTime string `default:"40-50 min" usage:"Preparation and delivery estimate shown on new orders" flag:"estimated-time"`
}

// PIXConfig identifies the merchant account PIX payloads are rendered for.
// Payments stay cash-only when Key is empty.
type PIXConfig struct {
	Key          string `usage:"PIX key payments are addressed to"`
	MerchantName string `default:"Prato Delivery" usage:"Merchant name on PIX payloads" flag:"merchant-name"`
	MerchantCity string `default:"SAO PAULO" usage:"Merchant city on PIX payloads" flag:"merchant-city"`
}

// KafkaConfig controls the status-change event stream. Publishing is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses (empty disables publishing)"`
	Topic   string   `default:"order-status-events" usage:"Topic for order status change events"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
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
		EnvPrefix: "PRATO",
		Files:     []string{"config.yaml", "/etc/prato/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PRATO_DATABASE_URL or DATABASE_URL")
	}
	switch cfg.Snapshot.Backend {
	case "postgres", "file":
	default:
		return nil, errors.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PRATO_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
