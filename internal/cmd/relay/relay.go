// Package relay parses the process configuration and runs the callback
// relay: HTTP API, session sweeper and payment webhook pipeline.
package relay

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"

	callbackrelay "github.com/goliatone/go-callback-relay"
	"github.com/goliatone/go-callback-relay/adapters/gocommand"
	"github.com/goliatone/go-callback-relay/adapters/gologger"
	"github.com/goliatone/go-callback-relay/billing"
	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/httpapi"
	"github.com/goliatone/go-callback-relay/identity"
	"github.com/goliatone/go-callback-relay/internal/telemetry"
	"github.com/goliatone/go-callback-relay/sessions"
	sqlstore "github.com/goliatone/go-callback-relay/store/sql"
	"github.com/goliatone/go-callback-relay/transport"
	"github.com/goliatone/go-callback-relay/webhooks"
	"github.com/goliatone/go-callback-relay/workflow"
)

// ParseConfig layers defaults, the environment (or environ when non-nil)
// and command-line flags, in that order, into a validated Config.
func ParseConfig(ctx context.Context, fs *flag.FlagSet, args []string, environ map[string]string) (core.Config, error) {
	var (
		runtime        core.Config
		port           int
		ledgerDriver   string
		ledgerDSN      string
		sweepInterval  time.Duration
		logLevel       string
		logFormat      string
		allowedOrigins string
	)
	fs.IntVar(&port, "port", 0, "HTTP listen port (overrides PORT)")
	fs.StringVar(&ledgerDriver, "ledger-driver", "", "delivery ledger driver: sqlite, postgres or memory")
	fs.StringVar(&ledgerDSN, "ledger-dsn", "", "delivery ledger DSN")
	fs.DurationVar(&sweepInterval, "sweep-interval", 0, "periodic session sweep interval; 0 sweeps on writes only")
	fs.StringVar(&logLevel, "log-level", "", "log level")
	fs.StringVar(&logFormat, "log-format", "", "log format: json or console")
	fs.StringVar(&allowedOrigins, "allowed-origins", "", "comma separated CORS allow-list")
	if err := fs.Parse(args); err != nil {
		return core.Config{}, err
	}

	runtime.HTTP.Port = port
	runtime.Ledger.Driver = ledgerDriver
	runtime.Ledger.DSN = ledgerDSN
	runtime.Sessions.SweepInterval = sweepInterval
	runtime.Log.Level = logLevel
	runtime.Log.Format = logFormat
	runtime.HTTP.AllowedOrigins = splitList(allowedOrigins)

	return core.ResolveConfig(ctx,
		core.NewCfgxConfigProvider(core.EnvConfigLoader{Environ: environ}),
		core.GoOptionsResolver{},
		runtime,
	)
}

type runOptions struct {
	logOutput io.Writer
	listener  net.Listener
	ready     func(*App)
}

type RunOption func(*runOptions)

// WithLogOutput redirects process logs. Defaults to stderr.
func WithLogOutput(w io.Writer) RunOption {
	return func(o *runOptions) { o.logOutput = w }
}

// WithListener serves on an existing listener instead of the configured port.
func WithListener(listener net.Listener) RunOption {
	return func(o *runOptions) { o.listener = listener }
}

// WithReady is called once the app is built, before serving starts.
func WithReady(fn func(*App)) RunOption {
	return func(o *runOptions) { o.ready = fn }
}

// App holds the wired components of one relay process.
type App struct {
	Config    core.Config
	Logger    glog.Logger
	Cache     *sessions.Cache
	Ledger    webhooks.DeliveryLedger
	Facade    *callbackrelay.Facade
	Processor *webhooks.Processor
	Server    *httpapi.Server
	Sweeper   *sessions.Sweeper

	closers []func() error
}

func (a *App) Close() error {
	var firstErr error
	for idx := len(a.closers) - 1; idx >= 0; idx-- {
		if err := a.closers[idx](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// Build wires every component from cfg. The caller must Close the app.
func Build(ctx context.Context, cfg core.Config, logger *gologger.Logger) (*App, error) {
	provider := gologger.NewProvider(logger)
	app := &App{Config: cfg, Logger: provider.GetLogger("relay")}

	app.Cache = sessions.NewCache(
		sessions.WithTTL(cfg.Sessions.TTL),
		sessions.WithLogger(provider.GetLogger("sessions")),
	)
	app.Sweeper = sessions.NewSweeper(app.Cache, cfg.Sessions.SweepInterval, provider.GetLogger("sessions"))

	ledger, err := openLedger(ctx, cfg, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Ledger = ledger

	app.Facade, err = callbackrelay.NewFacade(app.Cache, callbackrelay.WithDeliveryLedger(ledger))
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	// In-process embedders reach the same cache the HTTP server uses by
	// sending messages through the go-command dispatcher.
	subs, err := gocommand.RegisterFacade(gocommand.NewRegistryAdapter(nil), app.Facade)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("register command handlers: %w", err)
	}
	app.closers = append(app.closers, func() error {
		subs.Unsubscribe()
		return nil
	})

	rest := transport.NewTimeoutRESTAdapter(cfg.HTTP.ClientTimeout)

	clerk := identity.NewMetadataClient(rest, cfg.Clerk.APIURL, cfg.Clerk.APIKey)
	clerk.Logger = provider.GetLogger("identity")

	users := workflow.NewUserLookupClient(rest, cfg.Workflow.UserCheckWebhook)
	users.Logger = provider.GetLogger("workflow")

	gateway, err := billing.NewStripeGateway(cfg.Stripe.SecretKey, nil)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	catalog := billing.DefaultCatalog()
	if path := strings.TrimSpace(cfg.Stripe.TierCatalogPath); path != "" {
		catalog, err = billing.LoadCatalog(path)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	cacheConfig := repositorycache.DefaultConfig()
	if cfg.Stripe.SubscriptionCacheTTL > 0 {
		cacheConfig.TTL = cfg.Stripe.SubscriptionCacheTTL
	}
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("subscription cache: %w", err)
	}
	subscriptions, err := billing.NewCachedSubscriptions(gateway, cacheService)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	events := billing.NewEventHandler(gateway, catalog, clerk).WithSubscriptionCache(subscriptions)
	events.Logger = provider.GetLogger("billing")

	template := webhooks.NewStripeWebhookTemplate(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance)
	app.Processor = template.Processor(ledger, events)
	app.Processor.Logger = provider.GetLogger("webhooks")
	if !cfg.WebhookEnabled() {
		app.Logger.Warn("STRIPE_WEBHOOK_SECRET is not set; payment webhooks will be rejected")
	}

	metrics := telemetry.NewMeterRecorder(otel.Meter(cfg.ServiceName), provider.GetLogger("telemetry"))
	observer := core.NewObserver("relay", provider.GetLogger("http"), metrics)
	app.Server, err = httpapi.NewServer(app.Facade,
		httpapi.WithBilling(billing.NewService(gateway, provider.GetLogger("billing"))),
		httpapi.WithWebhookProcessor(app.Processor),
		httpapi.WithUserChecker(users),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
		httpapi.WithLogger(provider.GetLogger("http")),
		httpapi.WithObserver(observer),
	)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func openLedger(ctx context.Context, cfg core.Config, app *App) (webhooks.DeliveryLedger, error) {
	if cfg.Ledger.Driver == core.LedgerDriverMemory {
		return webhooks.NewInMemoryLedger(), nil
	}
	client, err := sqlstore.Open(ctx, cfg.Ledger, cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("open delivery ledger: %w", err)
	}
	app.closers = append(app.closers, client.Close)
	return sqlstore.NewLedger(client)
}

// Run builds the app and serves until ctx is done or the server fails. The
// periodic sweeper, when enabled, runs beside the server and stops with it.
func Run(ctx context.Context, cfg core.Config, opts ...RunOption) error {
	options := runOptions{logOutput: os.Stderr}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	logger, err := gologger.New(cfg.Log, options.logOutput)
	if err != nil {
		return err
	}
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(flushCtx)
	}()

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	if options.ready != nil {
		options.ready(app)
	}

	listener := options.listener
	if listener == nil {
		addr := ":" + strconv.Itoa(cfg.HTTP.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	p.Go(func(context.Context) error {
		defer stopServe()
		return app.Server.ServeListener(serveCtx, listener)
	})
	if app.Sweeper.Enabled() {
		p.Go(func(context.Context) error {
			app.Sweeper.Run(serveCtx)
			return nil
		})
	}
	return p.Wait()
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
