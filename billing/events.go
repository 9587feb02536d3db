package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/stripe/stripe-go/v79"

	"github.com/goliatone/go-callback-relay/core"
)

const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"

	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// SubscriptionInvalidator drops cached subscription snapshots.
type SubscriptionInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// EventHandler turns verified payment events into identity metadata updates.
type EventHandler struct {
	Gateway       Gateway
	Subscriptions SubscriptionReader
	Invalidator   SubscriptionInvalidator
	Catalog       *Catalog
	Metadata      core.MetadataWriter
	Logger        glog.Logger
	Now           func() time.Time
}

func NewEventHandler(gateway Gateway, catalog *Catalog, metadata core.MetadataWriter) *EventHandler {
	return &EventHandler{
		Gateway:       gateway,
		Subscriptions: gateway,
		Catalog:       catalog,
		Metadata:      metadata,
		Logger:        glog.Nop(),
		Now:           time.Now,
	}
}

// WithSubscriptionCache routes subscription reads through cached and lets
// lifecycle events invalidate it.
func (h *EventHandler) WithSubscriptionCache(cached *CachedSubscriptions) *EventHandler {
	if h == nil || cached == nil {
		return h
	}
	h.Subscriptions = cached
	h.Invalidator = cached
	return h
}

func (h *EventHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil {
		return core.InboundResult{}, core.InternalError(nil, "billing: event handler is not configured")
	}
	var event stripe.Event
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return core.InboundResult{}, core.ValidationError("invalid event payload")
	}

	userID, update, err := h.resolve(ctx, event)
	if err != nil {
		return core.InboundResult{}, err
	}

	updated := false
	if userID != "" && !update.Empty() {
		if h.Metadata == nil {
			return core.InboundResult{}, core.InternalError(nil, "billing: metadata writer is not configured")
		}
		if err := h.Metadata.UpdatePublicMetadata(ctx, userID, update); err != nil {
			return core.InboundResult{}, err
		}
		updated = true
		glog.Ensure(h.Logger).Info("identity metadata updated",
			"user_id", userID,
			"event_type", string(event.Type),
			"event_id", event.ID,
		)
	}

	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"updated":    updated,
		},
	}, nil
}

func (h *EventHandler) resolve(ctx context.Context, event stripe.Event) (string, core.MetadataUpdate, error) {
	raw := eventObject(event)
	switch string(event.Type) {
	case EventCheckoutCompleted:
		return h.checkoutCompleted(ctx, raw)
	case EventSubscriptionUpdated:
		return h.subscriptionUpdated(ctx, raw)
	case EventSubscriptionDeleted:
		return h.subscriptionDeleted(ctx, raw)
	case EventInvoicePaymentSucceeded:
		return h.invoicePaid(ctx, raw)
	default:
		return "", nil, nil
	}
}

func (h *EventHandler) checkoutCompleted(ctx context.Context, raw json.RawMessage) (string, core.MetadataUpdate, error) {
	var session stripe.CheckoutSession
	if err := decodeObject(raw, &session); err != nil {
		return "", nil, err
	}
	userID := strings.TrimSpace(session.Metadata[ClerkUserIDMetadataKey])
	if userID == "" {
		userID = strings.TrimSpace(session.ClientReferenceID)
	}
	if h.Gateway == nil {
		return "", nil, core.InternalError(nil, "billing: payments gateway is not configured")
	}
	expanded, err := h.Gateway.GetCheckoutSession(ctx, session.ID)
	if err != nil {
		return "", nil, err
	}
	tier := h.catalog().Lookup(expanded.PriceID)

	var customerID any
	if session.Customer != nil && session.Customer.ID != "" {
		customerID = session.Customer.ID
	}
	return userID, core.MetadataUpdate{
		"stripeCustomerId":   customerID,
		"subscriptionTier":   tier.Name,
		"subscriptionStatus": SubscriptionStatusActive,
		"creditsRemaining":   tier.Credits,
		"monthlyCredits":     tier.Credits,
		"brandLimit":         tier.BrandLimit,
	}, nil
}

func (h *EventHandler) subscriptionUpdated(ctx context.Context, raw json.RawMessage) (string, core.MetadataUpdate, error) {
	var payload stripe.Subscription
	if err := decodeObject(raw, &payload); err != nil {
		return "", nil, err
	}
	sub := SubscriptionFromStripe(&payload)
	h.invalidate(ctx, sub.ID)
	tier := h.catalog().Lookup(sub.PriceID)
	return strings.TrimSpace(sub.Metadata[ClerkUserIDMetadataKey]), core.MetadataUpdate{
		"subscriptionTier":   tier.Name,
		"monthlyCredits":     tier.Credits,
		"brandLimit":         tier.BrandLimit,
		"subscriptionStatus": sub.Status,
	}, nil
}

func (h *EventHandler) subscriptionDeleted(ctx context.Context, raw json.RawMessage) (string, core.MetadataUpdate, error) {
	var payload stripe.Subscription
	if err := decodeObject(raw, &payload); err != nil {
		return "", nil, err
	}
	h.invalidate(ctx, payload.ID)
	return strings.TrimSpace(payload.Metadata[ClerkUserIDMetadataKey]), core.MetadataUpdate{
		"subscriptionTier":   TierFree,
		"subscriptionStatus": SubscriptionStatusCancelled,
		"monthlyCredits":     0,
		"creditsRemaining":   0,
		"brandLimit":         1,
	}, nil
}

func (h *EventHandler) invoicePaid(ctx context.Context, raw json.RawMessage) (string, core.MetadataUpdate, error) {
	var invoice stripe.Invoice
	if err := decodeObject(raw, &invoice); err != nil {
		return "", nil, err
	}
	if invoice.Subscription == nil || strings.TrimSpace(invoice.Subscription.ID) == "" {
		return "", nil, core.ValidationError("invoice is not attached to a subscription")
	}
	if h.Subscriptions == nil {
		return "", nil, core.InternalError(nil, "billing: subscription reader is not configured")
	}
	sub, err := h.Subscriptions.GetSubscription(ctx, invoice.Subscription.ID)
	if err != nil {
		return "", nil, err
	}
	tier := h.catalog().Lookup(sub.PriceID)
	return strings.TrimSpace(sub.Metadata[ClerkUserIDMetadataKey]), core.MetadataUpdate{
		"creditsRemaining": tier.Credits,
		"lastPaymentDate":  h.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

func (h *EventHandler) invalidate(ctx context.Context, subscriptionID string) {
	if h.Invalidator == nil || strings.TrimSpace(subscriptionID) == "" {
		return
	}
	if err := h.Invalidator.Invalidate(ctx, subscriptionID); err != nil {
		glog.Ensure(h.Logger).Warn("subscription cache invalidation failed",
			"subscription_id", subscriptionID,
			"error", err.Error(),
		)
	}
}

func (h *EventHandler) catalog() *Catalog {
	if h.Catalog == nil {
		return DefaultCatalog()
	}
	return h.Catalog
}

func (h *EventHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func eventObject(event stripe.Event) json.RawMessage {
	if event.Data == nil {
		return nil
	}
	return event.Data.Raw
}

func decodeObject(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return core.ValidationError("event data object is required")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return core.ValidationError("invalid event data object")
	}
	return nil
}
