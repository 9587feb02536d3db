package billing

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-callback-relay/core"
)

const (
	MissingPriceIDMessage       = "Missing priceId"
	MissingRedirectURLsMessage  = "Missing success/cancel URL"
	NoActiveSubscriptionMessage = "No active subscription found"
)

type CancelResult struct {
	Success      bool `json:"success"`
	Subscription any  `json:"subscription"`
}

type PortalRequest struct {
	CustomerID string `json:"customerId"`
	ReturnURL  string `json:"returnUrl"`
}

// Service runs the customer-initiated billing flows.
type Service struct {
	Gateway Gateway
	Logger  glog.Logger
}

func NewService(gateway Gateway, logger glog.Logger) *Service {
	return &Service{Gateway: gateway, Logger: glog.Ensure(logger)}
}

// CreateCheckout returns the hosted checkout URL. Provider failures keep the
// provider's HTTP status.
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if strings.TrimSpace(req.PriceID) == "" {
		return "", core.ValidationError(MissingPriceIDMessage,
			goerrors.FieldError{Field: "priceId", Message: "required"})
	}
	if strings.TrimSpace(req.SuccessURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		return "", core.ValidationError(MissingRedirectURLsMessage,
			goerrors.FieldError{Field: "successUrl", Message: "required"},
			goerrors.FieldError{Field: "cancelUrl", Message: "required"})
	}
	gateway, err := s.gateway()
	if err != nil {
		return "", err
	}
	url, err := gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		glog.Ensure(s.Logger).Error("checkout session error", "price_id", req.PriceID, "error", err.Error())
		return "", err
	}
	return url, nil
}

// CancelSubscription flags the customer's first active subscription to end
// with the current period.
func (s *Service) CancelSubscription(ctx context.Context, customerID string) (CancelResult, error) {
	gateway, err := s.gateway()
	if err != nil {
		return CancelResult{}, err
	}
	sub, found, err := gateway.FirstActiveSubscription(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return CancelResult{}, s.serverError("cancel subscription error", err)
	}
	if !found {
		return CancelResult{}, core.InternalError(nil, NoActiveSubscriptionMessage)
	}
	updated, err := gateway.CancelAtPeriodEnd(ctx, sub.ID)
	if err != nil {
		return CancelResult{}, s.serverError("cancel subscription error", err)
	}
	var payload any = updated
	if updated.Raw != nil {
		payload = updated.Raw
	}
	return CancelResult{Success: true, Subscription: payload}, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, req PortalRequest) (string, error) {
	gateway, err := s.gateway()
	if err != nil {
		return "", err
	}
	url, err := gateway.CreatePortalSession(ctx, strings.TrimSpace(req.CustomerID), strings.TrimSpace(req.ReturnURL))
	if err != nil {
		return "", s.serverError("portal session error", err)
	}
	return url, nil
}

func (s *Service) gateway() (Gateway, error) {
	if s == nil || s.Gateway == nil {
		return nil, core.InternalError(nil, "billing: payments gateway is not configured")
	}
	return s.Gateway, nil
}

// serverError pins the answer to 500 while keeping the provider message.
func (s *Service) serverError(msg string, err error) error {
	glog.Ensure(s.Logger).Error(msg, "error", err.Error())
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return goerrors.New(rich.Message, rich.Category).
			WithCode(http.StatusInternalServerError).
			WithTextCode(rich.TextCode)
	}
	return core.WrapUpstream(err, err.Error())
}
