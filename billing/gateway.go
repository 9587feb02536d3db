package billing

import (
	"context"
)

type CheckoutSession struct {
	ID                string
	CustomerID        string
	ClientReferenceID string
	Metadata          map[string]string
	PriceID           string
}

type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	CancelAtPeriodEnd bool
	Metadata          map[string]string
	// Raw is the provider object, echoed back to API callers as-is.
	Raw any
}

type CheckoutRequest struct {
	PriceID        string `json:"priceId"`
	UserID         string `json:"userId"`
	UserEmail      string `json:"userEmail"`
	AirtableUserID string `json:"airtableUserId"`
	SuccessURL     string `json:"successUrl"`
	CancelURL      string `json:"cancelUrl"`
}

// ClientReference prefers the identity-provider user id and falls back to
// the Airtable record id.
func (r CheckoutRequest) ClientReference() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.AirtableUserID
}

// Gateway is the subset of the payments provider the relay talks to.
type Gateway interface {
	GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	GetSubscription(ctx context.Context, id string) (Subscription, error)
	FirstActiveSubscription(ctx context.Context, customerID string) (Subscription, bool, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (Subscription, error)
	CreatePortalSession(ctx context.Context, customerID string, returnURL string) (string, error)
}

// SubscriptionReader is satisfied by both the gateway and the cached view.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, id string) (Subscription, error)
}
