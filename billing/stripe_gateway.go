package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/goliatone/go-callback-relay/core"
)

const ClerkUserIDMetadataKey = "clerk_user_id"

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string, backends *stripe.Backends) (*StripeGateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, core.InternalError(nil, "Missing STRIPE_SECRET_KEY")
	}
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api}, nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	session, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return CheckoutSession{}, stripeError(err, "retrieve checkout session")
	}
	out := CheckoutSession{
		ID:                session.ID,
		ClientReferenceID: session.ClientReferenceID,
		Metadata:          copyStringMap(session.Metadata),
	}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}
	if session.LineItems != nil && len(session.LineItems.Data) > 0 {
		if item := session.LineItems.Data[0]; item != nil && item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := checkoutSessionParams(req)
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", stripeError(err, "create checkout session")
	}
	return session.URL, nil
}

// checkoutSessionParams leaves payment method types unset so the methods
// enabled on the account dashboard are offered.
func checkoutSessionParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{ClerkUserIDMetadataKey: req.UserID},
		},
	}
	if email := strings.TrimSpace(req.UserEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if reference := req.ClientReference(); reference != "" {
		params.ClientReferenceID = stripe.String(reference)
	}
	params.AddMetadata(ClerkUserIDMetadataKey, req.UserID)
	return params
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Get(id, params)
	if err != nil {
		return Subscription{}, stripeError(err, "retrieve subscription")
	}
	return SubscriptionFromStripe(sub), nil
}

func (g *StripeGateway) FirstActiveSubscription(ctx context.Context, customerID string) (Subscription, bool, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := g.api.Subscriptions.List(params)
	if iter.Next() {
		return SubscriptionFromStripe(iter.Subscription()), true, nil
	}
	if err := iter.Err(); err != nil {
		return Subscription{}, false, stripeError(err, "list subscriptions")
	}
	return Subscription{}, false, nil
}

func (g *StripeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return Subscription{}, stripeError(err, "update subscription")
	}
	return SubscriptionFromStripe(sub), nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID string, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	session, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", stripeError(err, "create portal session")
	}
	return session.URL, nil
}

func SubscriptionFromStripe(sub *stripe.Subscription) Subscription {
	if sub == nil {
		return Subscription{}
	}
	out := Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          copyStringMap(sub.Metadata),
		Raw:               sub,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if item := sub.Items.Data[0]; item != nil && item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out
}

// stripeError keeps the provider's HTTP status and message so callers can
// surface them unchanged.
func stripeError(err error, operation string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := stripeErr.HTTPStatusCode
		if code == 0 {
			code = http.StatusInternalServerError
		}
		message := strings.TrimSpace(stripeErr.Msg)
		if message == "" {
			message = "payments provider request failed"
		}
		return goerrors.Wrap(err, goerrors.CategoryExternal, message).
			WithCode(code).
			WithTextCode(core.RelayErrorUpstreamFailure).
			WithMetadata(map[string]any{
				"operation": operation,
				"type":      string(stripeErr.Type),
				"code":      string(stripeErr.Code),
			})
	}
	return core.WrapUpstream(err, err.Error())
}

func copyStringMap(input map[string]string) map[string]string {
	if len(input) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

var _ Gateway = (*StripeGateway)(nil)
