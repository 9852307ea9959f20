package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `envconfig:"APP_NAME" default:"TopUpNG"`
	AppEnv         string        `envconfig:"APP_ENV" default:"development"`
	Port           string        `envconfig:"PORT" default:"8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	RedisURL       string        `envconfig:"REDIS_URL"`
	ShutdownPeriod time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	JWTSecret       string        `envconfig:"JWT_SECRET" default:"dev-secret"`
	RefreshSecret   string        `envconfig:"REFRESH_SECRET" default:"dev-refresh-secret"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"720h"`

	Gateway   GatewayConfig
	Paystack  PaystackConfig
	Purchase  PurchaseConfig
	Reconcile ReconcileConfig
}

// GatewayConfig controls the upstream VTU aggregator connection.
type GatewayConfig struct {
	BaseURL string        `envconfig:"GATEWAY_BASE_URL"`
	APIKey  string        `envconfig:"GATEWAY_API_KEY"`
	Timeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"20s"`
}

// PaystackConfig controls the payment gateway used for wallet funding.
type PaystackConfig struct {
	SecretKey   string `envconfig:"PAYSTACK_SECRET_KEY"`
	BaseURL     string `envconfig:"PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL string `envconfig:"PAYSTACK_CALLBACK_URL"`
}

// PurchaseConfig tunes orchestration behaviour.
type PurchaseConfig struct {
	DebitProviderFloat bool          `envconfig:"DEBIT_PROVIDER_FLOAT" default:"false"`
	RefundAttempts     int           `envconfig:"REFUND_ATTEMPTS" default:"5"`
	RefundBackoff      time.Duration `envconfig:"REFUND_BACKOFF" default:"200ms"`
}

// ReconcileConfig tunes the background sweep over ambiguous transactions.
type ReconcileConfig struct {
	Interval   time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`
	StaleAfter time.Duration `envconfig:"RECONCILE_STALE_AFTER" default:"10m"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.JWTSecret == "dev-secret" || cfg.RefreshSecret == "dev-refresh-secret" {
			return Config{}, fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
