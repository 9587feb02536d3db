package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-callback-relay/adapters/gocommand"
	relaycommand "github.com/goliatone/go-callback-relay/command"
	"github.com/goliatone/go-callback-relay/core"
	relayquery "github.com/goliatone/go-callback-relay/query"
	"github.com/goliatone/go-callback-relay/webhooks"
)

func testEnviron() map[string]string {
	return map[string]string{
		"STRIPE_SECRET_KEY": "sk_test_123",
		"LEDGER_DRIVER":     "memory",
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	cfg, err := ParseConfig(context.Background(), fs, nil, testEnviron())
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTP.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.HTTP.Port)
	}
	if cfg.Sessions.TTL != 2*time.Hour || cfg.Sessions.SweepInterval != 0 {
		t.Fatalf("unexpected session settings %#v", cfg.Sessions)
	}
	if cfg.Ledger.Driver != core.LedgerDriverMemory {
		t.Fatalf("expected memory ledger from env, got %q", cfg.Ledger.Driver)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	environ := testEnviron()
	environ["PORT"] = "8080"
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	args := []string{"-port", "9000", "-sweep-interval", "1m", "-allowed-origins", "https://a.example, https://b.example"}
	cfg, err := ParseConfig(context.Background(), fs, args, environ)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTP.Port != 9000 {
		t.Fatalf("expected flag port, got %d", cfg.HTTP.Port)
	}
	if cfg.Sessions.SweepInterval != time.Minute {
		t.Fatalf("expected 1m sweep interval, got %s", cfg.Sessions.SweepInterval)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestParseConfigRequiresStripeSecret(t *testing.T) {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	_, err := ParseConfig(context.Background(), fs, nil, map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "STRIPE_SECRET_KEY") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestRun_ServesAndStops(t *testing.T) {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	cfg, err := ParseConfig(context.Background(), fs, []string{"-sweep-interval", "50ms"}, testEnviron())
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan *App, 1)
	done := make(chan error, 1)
	var logs bytes.Buffer
	go func() {
		done <- Run(ctx, cfg,
			WithListener(listener),
			WithLogOutput(&logs),
			WithReady(func(app *App) { ready <- app }),
		)
	}()

	var app *App
	select {
	case app = <-ready:
	case err := <-done:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("app was not built in time")
	}
	if _, ok := app.Ledger.(*webhooks.InMemoryLedger); !ok {
		t.Fatalf("expected memory ledger, got %T", app.Ledger)
	}

	base := "http://" + listener.Addr().String()
	body := `{"hook_image_url":"h","agitation_image_url":"a","solution_image_url":"s","cta_image_url":"c"}`
	var res *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		res, err = http.Post(base+"/api/callback/sess-1", "application/json", strings.NewReader(body))
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("post callback: %v", err)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	res, err = http.Get(base + "/api/check-images/sess-1")
	if err != nil {
		t.Fatalf("get check-images: %v", err)
	}
	payload := map[string]any{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_ = res.Body.Close()
	if payload["status"] != "completed" {
		t.Fatalf("unexpected status %#v", payload)
	}

	status, err := gocommand.Query[relayquery.CompletedImagesMessage, core.ImageStatus](ctx,
		relayquery.CompletedImagesMessage{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("query through dispatcher: %v", err)
	}
	if status.Status != core.SessionStatusCompleted || status.Images == nil || status.Images.Hook != "h" {
		t.Fatalf("unexpected dispatched status %#v", status)
	}
	if err := gocommand.Dispatch(ctx, relaycommand.DeleteSessionMessage{SessionID: "sess-1"}); err != nil {
		t.Fatalf("dispatch delete: %v", err)
	}
	if app.Cache.Len() != 0 {
		t.Fatalf("expected dispatched delete to clear the served cache")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
	if !strings.Contains(logs.String(), "callback relay listening") {
		t.Fatalf("expected startup log, got %q", logs.String())
	}
}
