package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"

	"github.com/goliatone/go-callback-relay/core"
	sqlstore "github.com/goliatone/go-callback-relay/store/sql"
	"github.com/goliatone/go-callback-relay/webhooks"
)

func TestOpen_AppliesSQLiteMigrations(t *testing.T) {
	client := newSQLiteClient(t)

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"relay_webhook_deliveries",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "relay_webhook_deliveries" {
		t.Fatalf("expected relay_webhook_deliveries table, got %q", tableName)
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), core.LedgerConfig{Driver: "mysql", DSN: "x"}, "relay-tests")
	if err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestNewLedger_RequiresClient(t *testing.T) {
	if _, err := sqlstore.NewLedger(nil); err == nil {
		t.Fatalf("expected missing client error")
	}
}

func TestDeliveryStore_ClaimDedupesAndReclaimsFailures(t *testing.T) {
	ctx := context.Background()
	store := newDeliveryStore(t)

	first, claimed, err := store.Claim(ctx, "stripe", "evt_1", "invoice.payment_succeeded", time.Minute)
	if err != nil || !claimed {
		t.Fatalf("expected first claim, got claimed=%v err=%v", claimed, err)
	}
	if first.Status != webhooks.DeliveryStatusProcessing || first.Attempts != 1 || first.LeaseExpiresAt == nil {
		t.Fatalf("unexpected first claim %#v", first)
	}

	_, claimed, err = store.Claim(ctx, "stripe", "evt_1", "invoice.payment_succeeded", time.Minute)
	if err != nil || claimed {
		t.Fatalf("expected in-flight delivery to be deduped, got claimed=%v err=%v", claimed, err)
	}

	if err := store.Release(ctx, first.ClaimID, errors.New("clerk unavailable")); err != nil {
		t.Fatalf("release: %v", err)
	}
	released, err := store.Get(ctx, "stripe", "evt_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if released.Status != webhooks.DeliveryStatusFailed || released.LastError != "clerk unavailable" || released.LeaseExpiresAt != nil {
		t.Fatalf("unexpected released delivery %#v", released)
	}

	second, claimed, err := store.Claim(ctx, "stripe", "evt_1", "invoice.payment_succeeded", time.Minute)
	if err != nil || !claimed {
		t.Fatalf("expected failed delivery to be reclaimed, got claimed=%v err=%v", claimed, err)
	}
	if second.Attempts != 2 || second.ClaimID == first.ClaimID {
		t.Fatalf("unexpected reclaim %#v", second)
	}

	// A stale claim id must not finish the new attempt.
	if err := store.Complete(ctx, first.ClaimID); err != nil {
		t.Fatalf("complete stale: %v", err)
	}
	current, _ := store.Get(ctx, "stripe", "evt_1")
	if current.Status != webhooks.DeliveryStatusProcessing {
		t.Fatalf("expected stale completion to be ignored, got %q", current.Status)
	}

	if err := store.Complete(ctx, second.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, claimed, err = store.Claim(ctx, "stripe", "evt_1", "invoice.payment_succeeded", time.Minute)
	if err != nil || claimed {
		t.Fatalf("expected processed delivery to stay deduped, got claimed=%v err=%v", claimed, err)
	}
}

func TestDeliveryStore_ReclaimsExpiredLease(t *testing.T) {
	ctx := context.Background()
	store := newDeliveryStore(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	if _, claimed, err := store.Claim(ctx, "stripe", "evt_lease", "", time.Second); err != nil || !claimed {
		t.Fatalf("first claim: %v %v", claimed, err)
	}
	now = now.Add(2 * time.Second)
	record, claimed, err := store.Claim(ctx, "stripe", "evt_lease", "", time.Second)
	if err != nil || !claimed {
		t.Fatalf("expected expired lease to be reclaimed, got claimed=%v err=%v", claimed, err)
	}
	if record.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", record.Attempts)
	}
}

func TestDeliveryStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	store := newDeliveryStore(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := store.Claim(ctx, "stripe", "evt_race", "", time.Minute)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestDeliveryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newDeliveryStore(t)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		store.Now = func() time.Time { return at }
		provider := "stripe"
		if i == 4 {
			provider = "other"
		}
		if _, _, err := store.Claim(ctx, provider, fmt.Sprintf("evt_%d", i), "", time.Minute); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}

	page, err := store.List(ctx, webhooks.DeliveryFilter{ProviderID: "stripe", Page: 1, PerPage: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 3 {
		t.Fatalf("unexpected page totals %d/%d", page.Total, len(page.Items))
	}
	if page.Items[0].DeliveryID != "evt_3" || page.Items[2].DeliveryID != "evt_1" {
		t.Fatalf("expected newest first, got %s..%s", page.Items[0].DeliveryID, page.Items[2].DeliveryID)
	}

	page, err = store.List(ctx, webhooks.DeliveryFilter{ProviderID: "stripe", Page: 2, PerPage: 3})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].DeliveryID != "evt_0" {
		t.Fatalf("unexpected second page %#v", page.Items)
	}
}

func TestDeliveryStore_WorksBehindProcessor(t *testing.T) {
	ctx := context.Background()
	store := newDeliveryStore(t)
	calls := 0
	processor := webhooks.NewProcessor(nil, store, webhooks.HandlerFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
		calls++
		return core.InboundResult{Accepted: true, StatusCode: 200}, nil
	}))
	req := core.InboundRequest{ProviderID: "stripe", Metadata: map[string]any{"delivery_id": "evt_proc"}}
	for i := 0; i < 2; i++ {
		if _, err := processor.Process(ctx, req); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func newDeliveryStore(t *testing.T) *sqlstore.DeliveryStore {
	t.Helper()
	store, err := sqlstore.NewLedger(newSQLiteClient(t))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return store
}

func newSQLiteClient(t *testing.T) *persistence.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:relay-test-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	client, err := sqlstore.Open(context.Background(), core.LedgerConfig{
		Driver: core.LedgerDriverSQLite,
		DSN:    dsn,
	}, "relay-tests")
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}
