package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/sessions"
	"github.com/goliatone/go-callback-relay/webhooks"
)

func seededCache(t *testing.T) *sessions.Cache {
	t.Helper()
	cache := sessions.NewCache()
	_, err := cache.Ingest(context.Background(), "sess-1", core.CallbackPayload{Images: core.ImageSet{
		Hook: "https://img/h.png", Agitation: "https://img/a.png", Solution: "https://img/s.png", CTA: "https://img/c.png",
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return cache
}

func TestCompletedImagesQuery(t *testing.T) {
	qry := NewCompletedImagesQuery(seededCache(t))

	status, err := qry.Query(context.Background(), CompletedImagesMessage{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if status.Status != core.SessionStatusCompleted || status.Images == nil || status.Images.Hook != "https://img/h.png" {
		t.Fatalf("unexpected status %#v", status)
	}

	status, err = qry.Query(context.Background(), CompletedImagesMessage{SessionID: "unknown"})
	if err != nil {
		t.Fatalf("query unknown: %v", err)
	}
	if status.Status != core.SessionStatusPending || status.Images != nil {
		t.Fatalf("expected pending for unseen session, got %#v", status)
	}
}

func TestRegeneratedImagesQuery_DrainsOnce(t *testing.T) {
	cache := seededCache(t)
	_, err := cache.Ingest(context.Background(), "sess-1", core.CallbackPayload{Images: core.ImageSet{Hook: "https://img/h2.png"}})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	qry := NewRegeneratedImagesQuery(cache)

	first, err := qry.Query(context.Background(), RegeneratedImagesMessage{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if first.Status != core.SessionStatusRegenerated || first.Images == nil || first.Images.Hook != "https://img/h2.png" {
		t.Fatalf("unexpected first read %#v", first)
	}
	second, err := qry.Query(context.Background(), RegeneratedImagesMessage{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if second.Status != core.SessionStatusPending {
		t.Fatalf("expected drained flag, got %#v", second)
	}
}

func TestListAndGetSessionQueries(t *testing.T) {
	cache := seededCache(t)

	list, err := NewListSessionsQuery(cache).Query(context.Background(), ListSessionsMessage{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "sess-1" || !list[0].HasAllImages {
		t.Fatalf("unexpected list %#v", list)
	}

	session, err := NewGetSessionQuery(cache).Query(context.Background(), GetSessionMessage{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if session.ID != "sess-1" || session.Status != core.SessionStatusCompleted {
		t.Fatalf("unexpected session %#v", session)
	}

	_, err = NewGetSessionQuery(cache).Query(context.Background(), GetSessionMessage{SessionID: "nope"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Code != http.StatusNotFound {
		t.Fatalf("expected not found envelope, got %v", err)
	}
}

func TestListDeliveriesQuery(t *testing.T) {
	ledger := webhooks.NewInMemoryLedger()
	for _, id := range []string{"evt_1", "evt_2", "evt_3"} {
		if _, _, err := ledger.Claim(context.Background(), "stripe", id, "invoice.payment_succeeded", 0); err != nil {
			t.Fatalf("claim %s: %v", id, err)
		}
	}
	page, err := NewListDeliveriesQuery(ledger).Query(context.Background(), ListDeliveriesMessage{
		Filter: webhooks.DeliveryFilter{ProviderID: "stripe", PerPage: 2},
	})
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Page != 1 || page.PerPage != 2 {
		t.Fatalf("unexpected page %#v", page)
	}

	_, err = NewListDeliveriesQuery(ledger).Query(context.Background(), ListDeliveriesMessage{
		Filter: webhooks.DeliveryFilter{Page: -1},
	})
	if err == nil {
		t.Fatalf("expected negative page to fail")
	}
}

func TestQueries_RequireDependencies(t *testing.T) {
	ctx := context.Background()
	if _, err := NewCompletedImagesQuery(nil).Query(ctx, CompletedImagesMessage{SessionID: "x"}); err == nil {
		t.Fatalf("expected completed dependency error")
	}
	if _, err := NewRegeneratedImagesQuery(nil).Query(ctx, RegeneratedImagesMessage{SessionID: "x"}); err == nil {
		t.Fatalf("expected regenerated dependency error")
	}
	if _, err := NewListSessionsQuery(nil).Query(ctx, ListSessionsMessage{}); err == nil {
		t.Fatalf("expected list dependency error")
	}
	if _, err := NewListDeliveriesQuery(nil).Query(ctx, ListDeliveriesMessage{}); err == nil {
		t.Fatalf("expected deliveries dependency error")
	}
}

func TestQueries_RejectEmptySessionID(t *testing.T) {
	_, err := NewCompletedImagesQuery(sessions.NewCache()).Query(context.Background(), CompletedImagesMessage{SessionID: ""})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.RelayErrorBadInput {
		t.Fatalf("expected bad input envelope, got %v", err)
	}
}
