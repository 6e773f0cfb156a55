package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreSupabase = "supabase"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration.
// Values are loaded from the environment (and an optional .env file) with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration
	RedisURL string

	// Observability
	OTLPEndpoint string

	// Persistence
	StoreBackend string
	DatabaseURL  string

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Access
	BootstrapAdminEmail string

	// Payments
	StripeSecretKey          string
	StripeWebhookSecret      string
	StripePriceID            string
	CheckoutSuccessURL       string
	CheckoutCancelURL        string
	MercadoPagoWebhookSecret string

	// Outbound notifications
	OutboundWebhookSecret string
	NotifyTimeout         time.Duration
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	EnvFile string
}

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

// LoadWithOptions reads configuration with the given options.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("INITIAL_BACKOFF", "100ms")
	v.SetDefault("MAX_CONCURRENCY", 50)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("STORE_BACKEND", StoreSupabase)
	v.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:5173/pagamento/sucesso")
	v.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:5173/pagamento/cancelado")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")

	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")

		currentPath, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current directory: %w", err)
		}
		v.AddConfigPath(currentPath)

		if err := v.ReadInConfig(); err != nil {
			// a missing .env is fine
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),

		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),
		MaxConcurrency: v.GetInt("MAX_CONCURRENCY"),

		CacheTTL: v.GetDuration("CACHE_TTL"),
		RedisURL: v.GetString("REDIS_URL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		StoreBackend: strings.ToLower(v.GetString("STORE_BACKEND")),
		DatabaseURL:  v.GetString("DATABASE_URL"),

		SupabaseURL:        strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
		SupabaseServiceKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:  v.GetString("SUPABASE_JWT_SECRET"),

		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(v.GetString("BOOTSTRAP_ADMIN_EMAIL"))),

		StripeSecretKey:          v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:      v.GetString("STRIPE_WEBHOOK_SECRET"),
		StripePriceID:            v.GetString("STRIPE_PRICE_ID"),
		CheckoutSuccessURL:       v.GetString("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:        v.GetString("CHECKOUT_CANCEL_URL"),
		MercadoPagoWebhookSecret: v.GetString("MERCADOPAGO_WEBHOOK_SECRET"),

		OutboundWebhookSecret: v.GetString("OUTBOUND_WEBHOOK_SECRET"),
		NotifyTimeout:         v.GetDuration("NOTIFY_TIMEOUT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for STORE_BACKEND=%s", StoreSupabase)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.StripeSecretKey != "" && c.StripeSecretKey == c.StripeWebhookSecret {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET must differ from STRIPE_SECRET_KEY")
	}
	return nil
}

// StripeEnabled reports whether checkout and the Stripe webhook can run.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}
