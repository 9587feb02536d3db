package core

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvConfig holds the raw environment values. Unset variables stay zero so
// they do not override lower layers.
type EnvConfig struct {
	Port                 int           `env:"PORT"`
	StripeSecretKey      string        `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret  string        `env:"STRIPE_WEBHOOK_SECRET"`
	ClerkAPIKey          string        `env:"CLERK_API_KEY"`
	ClerkAPIURL          string        `env:"CLERK_API_URL"`
	UserCheckWebhook     string        `env:"N8N_USER_CHECK_WEBHOOK"`
	AllowedOrigins       []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	SessionTTL           time.Duration `env:"SESSION_TTL"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL"`
	LedgerDriver         string        `env:"LEDGER_DRIVER"`
	LedgerDSN            string        `env:"LEDGER_DSN"`
	LedgerDebug          bool          `env:"LEDGER_DEBUG"`
	TierCatalogPath      string        `env:"TIER_CATALOG_PATH"`
	SubscriptionCacheTTL time.Duration `env:"SUBSCRIPTION_CACHE_TTL"`
	HTTPClientTimeout    time.Duration `env:"HTTP_CLIENT_TIMEOUT"`
	LogLevel             string        `env:"LOG_LEVEL"`
	LogFormat            string        `env:"LOG_FORMAT"`
	OTLPEndpoint         string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// ParseEnv reads EnvConfig from the process environment, or from environ
// when it is non-nil.
func ParseEnv(environ map[string]string) (EnvConfig, error) {
	var cfg EnvConfig
	var err error
	if environ != nil {
		err = env.ParseWithOptions(&cfg, env.Options{Environment: environ})
	} else {
		err = env.Parse(&cfg)
	}
	if err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := godotenv.Read(path); err != nil {
			continue
		}
		existing = append(existing, path)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

func (e EnvConfig) Config() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:           e.Port,
			AllowedOrigins: append([]string(nil), e.AllowedOrigins...),
			ClientTimeout:  e.HTTPClientTimeout,
		},
		Sessions: SessionsConfig{
			TTL:           e.SessionTTL,
			SweepInterval: e.SessionSweepInterval,
		},
		Stripe: StripeConfig{
			SecretKey:            e.StripeSecretKey,
			WebhookSecret:        e.StripeWebhookSecret,
			TierCatalogPath:      e.TierCatalogPath,
			SubscriptionCacheTTL: e.SubscriptionCacheTTL,
		},
		Clerk: ClerkConfig{
			APIKey: e.ClerkAPIKey,
			APIURL: e.ClerkAPIURL,
		},
		Workflow: WorkflowConfig{
			UserCheckWebhook: e.UserCheckWebhook,
		},
		Ledger: LedgerConfig{
			Driver: e.LedgerDriver,
			DSN:    e.LedgerDSN,
			Debug:  e.LedgerDebug,
		},
		Log: LogConfig{
			Level:  e.LogLevel,
			Format: e.LogFormat,
		},
		Telemetry: TelemetryConfig{
			Endpoint: e.OTLPEndpoint,
		},
	}
}

// EnvConfigLoader adapts EnvConfig to RawConfigLoader.
type EnvConfigLoader struct {
	Environ map[string]string
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	parsed, err := ParseEnv(l.Environ)
	if err != nil {
		return nil, err
	}
	return configToLayerMap(parsed.Config(), false), nil
}
