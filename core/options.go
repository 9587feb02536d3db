package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// ResolveConfig layers defaults, loaded values and runtime overrides, in
// that order of precedence, and validates the result.
func ResolveConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return CloneMap(l.Values), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes the raw layer on top of defaults. Validation is left to the
// resolver since the loaded layer alone may be incomplete.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("env", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("env"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	resolved.Ledger.Driver = strings.ToLower(strings.TrimSpace(resolved.Ledger.Driver))
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)

	httpLayer := map[string]any{}
	if includeZero || cfg.HTTP.Port != 0 {
		httpLayer["port"] = cfg.HTTP.Port
	}
	if includeZero || len(cfg.HTTP.AllowedOrigins) > 0 {
		httpLayer["allowed_origins"] = append([]string(nil), cfg.HTTP.AllowedOrigins...)
	}
	putDuration(httpLayer, "client_timeout", cfg.HTTP.ClientTimeout, includeZero)
	putSection(layer, "http", httpLayer)

	sessionsLayer := map[string]any{}
	putDuration(sessionsLayer, "ttl", cfg.Sessions.TTL, includeZero)
	putDuration(sessionsLayer, "sweep_interval", cfg.Sessions.SweepInterval, includeZero)
	putSection(layer, "sessions", sessionsLayer)

	stripeLayer := map[string]any{}
	putString(stripeLayer, "secret_key", cfg.Stripe.SecretKey, includeZero)
	putString(stripeLayer, "webhook_secret", cfg.Stripe.WebhookSecret, includeZero)
	putDuration(stripeLayer, "webhook_tolerance", cfg.Stripe.WebhookTolerance, includeZero)
	putString(stripeLayer, "tier_catalog_path", cfg.Stripe.TierCatalogPath, includeZero)
	putDuration(stripeLayer, "subscription_cache_ttl", cfg.Stripe.SubscriptionCacheTTL, includeZero)
	putSection(layer, "stripe", stripeLayer)

	clerkLayer := map[string]any{}
	putString(clerkLayer, "api_key", cfg.Clerk.APIKey, includeZero)
	putString(clerkLayer, "api_url", cfg.Clerk.APIURL, includeZero)
	putSection(layer, "clerk", clerkLayer)

	workflowLayer := map[string]any{}
	putString(workflowLayer, "user_check_webhook", cfg.Workflow.UserCheckWebhook, includeZero)
	putSection(layer, "workflow", workflowLayer)

	ledgerLayer := map[string]any{}
	putString(ledgerLayer, "driver", cfg.Ledger.Driver, includeZero)
	putString(ledgerLayer, "dsn", cfg.Ledger.DSN, includeZero)
	if includeZero || cfg.Ledger.Debug {
		ledgerLayer["debug"] = cfg.Ledger.Debug
	}
	putSection(layer, "ledger", ledgerLayer)

	logLayer := map[string]any{}
	putString(logLayer, "level", cfg.Log.Level, includeZero)
	putString(logLayer, "format", cfg.Log.Format, includeZero)
	putSection(layer, "log", logLayer)

	telemetryLayer := map[string]any{}
	putString(telemetryLayer, "endpoint", cfg.Telemetry.Endpoint, includeZero)
	putSection(layer, "telemetry", telemetryLayer)
	return layer
}

func putString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}

func putDuration(layer map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		layer[key] = section
	}
}
