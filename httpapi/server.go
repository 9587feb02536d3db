package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	relay "github.com/goliatone/go-callback-relay"
	"github.com/goliatone/go-callback-relay/billing"
	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/webhooks"
)

const (
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// UserChecker relays an email lookup and returns the upstream JSON.
type UserChecker interface {
	CheckUser(ctx context.Context, email string) (json.RawMessage, error)
}

// WebhookProcessor verifies, deduplicates and handles one payment webhook.
type WebhookProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type BillingService interface {
	CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (string, error)
	CancelSubscription(ctx context.Context, customerID string) (billing.CancelResult, error)
	CreatePortalSession(ctx context.Context, req billing.PortalRequest) (string, error)
}

type Server struct {
	Facade         *relay.Facade
	Billing        BillingService
	Webhooks       WebhookProcessor
	Users          UserChecker
	Schemas        *SchemaSet
	AllowedOrigins OriginAllowList
	MaxBodyBytes   int64
	Logger         glog.Logger
	Observer       core.Observer
	Now            func() time.Time

	observerSet bool
}

type Option func(*Server)

func WithBilling(service BillingService) Option {
	return func(s *Server) { s.Billing = service }
}

func WithWebhookProcessor(processor WebhookProcessor) Option {
	return func(s *Server) { s.Webhooks = processor }
}

func WithUserChecker(users UserChecker) Option {
	return func(s *Server) { s.Users = users }
}

func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.AllowedOrigins = NewOriginAllowList(origins) }
}

func WithLogger(logger glog.Logger) Option {
	return func(s *Server) { s.Logger = glog.Ensure(logger) }
}

func WithObserver(observer core.Observer) Option {
	return func(s *Server) {
		s.Observer = observer
		s.observerSet = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.Now = now
		}
	}
}

func NewServer(facade *relay.Facade, opts ...Option) (*Server, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: facade is required")
	}
	schemas, err := LoadSchemas()
	if err != nil {
		return nil, err
	}
	server := &Server{
		Facade:       facade,
		Schemas:      schemas,
		MaxBodyBytes: defaultMaxBodyBytes,
		Logger:       glog.Nop(),
		Now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	if !server.observerSet {
		server.Observer = core.NewObserver("relay", server.Logger, nil)
	}
	return server, nil
}

// Handler returns the routed API wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return Chain(mux,
		RecoverPanic(s.Logger),
		RequestID(),
		AccessLog(s.Observer),
		CORS(s.AllowedOrigins),
	)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/callback/{sessionId}", s.handleCallback)
	mux.HandleFunc("GET /api/check-images/{sessionId}", s.handleCheckImages)
	mux.HandleFunc("GET /api/check-regenerated-images/{sessionId}", s.handleCheckRegeneratedImages)
	mux.HandleFunc("DELETE /api/session/{sessionId}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/session/{sessionId}/details", s.handleSessionDetails)

	mux.HandleFunc("POST /api/create-checkout", s.handleCreateCheckout)
	mux.HandleFunc("POST /api/cancel-subscription", s.handleCancelSubscription)
	mux.HandleFunc("POST /api/create-portal-session", s.handleCreatePortalSession)
	mux.HandleFunc("POST /api/stripe-webhook-to-clerk", s.handleStripeWebhook)

	mux.HandleFunc("POST /api/check-user", s.handleCheckUser)

	mux.HandleFunc("GET /api/webhooks/deliveries", s.handleListDeliveries)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	logger := glog.Ensure(s.Logger)
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("callback relay listening", "addr", listener.Addr().String())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("callback relay stopped")
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": formatTime(s.now()),
	})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, core.ValidationError("Request body too large")
		}
		return nil, core.ValidationError("Unable to read request body")
	}
	return body, nil
}

// decodeBody reads, schema-checks and decodes a JSON request body into
// target. An empty body decodes as an empty object.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, target any) ([]byte, error) {
	body, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return body, nil
	}
	if !json.Valid(body) {
		return nil, core.ValidationError("Request body must be valid JSON")
	}
	if err := s.Schemas.Validate(schema, body); err != nil {
		return nil, err
	}
	if target != nil {
		if err := json.Unmarshal(body, target); err != nil {
			return nil, core.ValidationError("Request body must be a JSON object")
		}
	}
	return body, nil
}

func (s *Server) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var _ WebhookProcessor = (*webhooks.Processor)(nil)
