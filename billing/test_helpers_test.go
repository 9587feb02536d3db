package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-callback-relay/core"
)

type stubGateway struct {
	mu sync.Mutex

	checkout         CheckoutSession
	checkoutErr      error
	checkoutURL      string
	createErr        error
	subscriptions    map[string]Subscription
	active           *Subscription
	listErr          error
	cancelErr        error
	portalURL        string
	portalErr        error
	lastCheckout     CheckoutRequest
	lastPortal       [2]string
	cancelled        []string
	subscriptionHits int
}

func (g *stubGateway) GetCheckoutSession(_ context.Context, id string) (CheckoutSession, error) {
	if g.checkoutErr != nil {
		return CheckoutSession{}, g.checkoutErr
	}
	out := g.checkout
	out.ID = id
	return out, nil
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (string, error) {
	g.mu.Lock()
	g.lastCheckout = req
	g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.checkoutURL, nil
}

func (g *stubGateway) GetSubscription(_ context.Context, id string) (Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptionHits++
	sub, ok := g.subscriptions[id]
	if !ok {
		return Subscription{}, fmt.Errorf("subscription %s not found", id)
	}
	return sub, nil
}

func (g *stubGateway) FirstActiveSubscription(_ context.Context, _ string) (Subscription, bool, error) {
	if g.listErr != nil {
		return Subscription{}, false, g.listErr
	}
	if g.active == nil {
		return Subscription{}, false, nil
	}
	return *g.active, true, nil
}

func (g *stubGateway) CancelAtPeriodEnd(_ context.Context, id string) (Subscription, error) {
	if g.cancelErr != nil {
		return Subscription{}, g.cancelErr
	}
	g.cancelled = append(g.cancelled, id)
	out := Subscription{ID: id, Status: "active", CancelAtPeriodEnd: true}
	return out, nil
}

func (g *stubGateway) CreatePortalSession(_ context.Context, customerID string, returnURL string) (string, error) {
	g.lastPortal = [2]string{customerID, returnURL}
	if g.portalErr != nil {
		return "", g.portalErr
	}
	return g.portalURL, nil
}

func (g *stubGateway) hits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscriptionHits
}

type metadataCall struct {
	userID string
	update core.MetadataUpdate
}

type captureMetadataWriter struct {
	calls []metadataCall
	err   error
}

func (w *captureMetadataWriter) UpdatePublicMetadata(_ context.Context, userID string, update core.MetadataUpdate) error {
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, metadataCall{userID: userID, update: update})
	return nil
}
