package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	relay "github.com/goliatone/go-callback-relay"
	"github.com/goliatone/go-callback-relay/billing"
	"github.com/goliatone/go-callback-relay/sessions"
	"github.com/goliatone/go-callback-relay/webhooks"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubBilling struct {
	checkoutReq billing.CheckoutRequest
	checkoutURL string
	checkoutErr error
	cancelID    string
	cancel      billing.CancelResult
	cancelErr   error
	portalReq   billing.PortalRequest
	portalURL   string
	portalErr   error
}

func (s *stubBilling) CreateCheckout(_ context.Context, req billing.CheckoutRequest) (string, error) {
	s.checkoutReq = req
	return s.checkoutURL, s.checkoutErr
}

func (s *stubBilling) CancelSubscription(_ context.Context, customerID string) (billing.CancelResult, error) {
	s.cancelID = customerID
	return s.cancel, s.cancelErr
}

func (s *stubBilling) CreatePortalSession(_ context.Context, req billing.PortalRequest) (string, error) {
	s.portalReq = req
	return s.portalURL, s.portalErr
}

type stubUsers struct {
	email string
	raw   json.RawMessage
	err   error
}

func (s *stubUsers) CheckUser(_ context.Context, email string) (json.RawMessage, error) {
	s.email = email
	return s.raw, s.err
}

type testEnv struct {
	clock   *testClock
	cache   *sessions.Cache
	ledger  *webhooks.InMemoryLedger
	server  *Server
	handler http.Handler
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	clock := newTestClock()
	cache := relay.NewSessionCache(relay.WithSessionClock(clock.Now))
	ledger := webhooks.NewInMemoryLedger()
	ledger.Now = clock.Now
	facade, err := relay.NewFacade(cache, relay.WithDeliveryLedger(ledger))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	server, err := NewServer(facade, opts...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testEnv{clock: clock, cache: cache, ledger: ledger, server: server, handler: server.Handler()}
}

func (e *testEnv) do(t *testing.T, method string, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

const fullCallbackBody = `{"hook_image_url":"h1","agitation_image_url":"a1","solution_image_url":"s1","cta_image_url":"c1","variant":"B"}`
