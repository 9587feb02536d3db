package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	LedgerDriverSQLite   = "sqlite"
	LedgerDriverPostgres = "postgres"
	LedgerDriverMemory   = "memory"

	DefaultSessionTTL      = 2 * time.Hour
	DefaultClerkAPIURL     = "https://api.clerk.dev/v1"
	DefaultLedgerSQLiteDSN = "file:relay_ledger?mode=memory&cache=shared&_foreign_keys=on"
)

type HTTPConfig struct {
	Port           int           `koanf:"port" mapstructure:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins" mapstructure:"allowed_origins"`
	ClientTimeout  time.Duration `koanf:"client_timeout" mapstructure:"client_timeout"`
}

type SessionsConfig struct {
	TTL           time.Duration `koanf:"ttl" mapstructure:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
}

type StripeConfig struct {
	SecretKey            string        `koanf:"secret_key" mapstructure:"secret_key"`
	WebhookSecret        string        `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	WebhookTolerance     time.Duration `koanf:"webhook_tolerance" mapstructure:"webhook_tolerance"`
	TierCatalogPath      string        `koanf:"tier_catalog_path" mapstructure:"tier_catalog_path"`
	SubscriptionCacheTTL time.Duration `koanf:"subscription_cache_ttl" mapstructure:"subscription_cache_ttl"`
}

type ClerkConfig struct {
	APIKey string `koanf:"api_key" mapstructure:"api_key"`
	APIURL string `koanf:"api_url" mapstructure:"api_url"`
}

type WorkflowConfig struct {
	UserCheckWebhook string `koanf:"user_check_webhook" mapstructure:"user_check_webhook"`
}

type LedgerConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint string `koanf:"endpoint" mapstructure:"endpoint"`
}

type LogConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	Sessions    SessionsConfig  `koanf:"sessions" mapstructure:"sessions"`
	Stripe      StripeConfig    `koanf:"stripe" mapstructure:"stripe"`
	Clerk       ClerkConfig     `koanf:"clerk" mapstructure:"clerk"`
	Workflow    WorkflowConfig  `koanf:"workflow" mapstructure:"workflow"`
	Ledger      LedgerConfig    `koanf:"ledger" mapstructure:"ledger"`
	Log         LogConfig       `koanf:"log" mapstructure:"log"`
	Telemetry   TelemetryConfig `koanf:"telemetry" mapstructure:"telemetry"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "callback-relay",
		HTTP: HTTPConfig{
			Port:          3000,
			ClientTimeout: 30 * time.Second,
		},
		Sessions: SessionsConfig{
			TTL: DefaultSessionTTL,
		},
		Stripe: StripeConfig{
			WebhookTolerance:     5 * time.Minute,
			SubscriptionCacheTTL: time.Minute,
		},
		Clerk: ClerkConfig{
			APIURL: DefaultClerkAPIURL,
		},
		Ledger: LedgerConfig{
			Driver: LedgerDriverSQLite,
			DSN:    DefaultLedgerSQLiteDSN,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Stripe.SecretKey) == "" {
		return fmt.Errorf("Missing STRIPE_SECRET_KEY")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("core: http port %d is invalid", c.HTTP.Port)
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("core: sessions ttl must be positive")
	}
	if c.Sessions.SweepInterval < 0 {
		return fmt.Errorf("core: sessions sweep_interval must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Ledger.Driver)) {
	case LedgerDriverSQLite, LedgerDriverPostgres, LedgerDriverMemory:
	default:
		return fmt.Errorf("core: ledger driver %q is invalid", c.Ledger.Driver)
	}
	if c.Ledger.Driver != LedgerDriverMemory && strings.TrimSpace(c.Ledger.DSN) == "" {
		return fmt.Errorf("core: ledger dsn is required for driver %q", c.Ledger.Driver)
	}
	return nil
}

// WebhookEnabled reports whether payment webhooks can be verified.
func (c Config) WebhookEnabled() bool {
	return strings.TrimSpace(c.Stripe.WebhookSecret) != ""
}
