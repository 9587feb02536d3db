package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/goliatone/go-callback-relay/core"
)

const (
	ProviderStripe        = "stripe"
	StripeSignatureHeader = "Stripe-Signature"
)

type ProviderWebhookTemplate struct {
	ProviderID    string
	Verifier      Verifier
	Extractor     DeliveryIDExtractor
	TypeExtractor EventTypeExtractor
}

// StripeSignatureVerifier checks the Stripe-Signature header against the
// endpoint secret using the SDK's timestamped HMAC scheme.
type StripeSignatureVerifier struct {
	Secret    string
	Tolerance time.Duration
}

func (v StripeSignatureVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.SignatureError("webhook signing secret is not configured")
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	header := headerValue(req.Headers, StripeSignatureHeader)
	if err := webhook.ValidatePayloadWithTolerance(req.Body, header, secret, tolerance); err != nil {
		return core.SignatureError(err.Error())
	}
	return nil
}

// BodyFieldExtractor reads a top-level string field of a JSON body.
func BodyFieldExtractor(field string) DeliveryIDExtractor {
	field = strings.TrimSpace(field)
	return func(req core.InboundRequest) (string, error) {
		if value := bodyField(req.Body, field); value != "" {
			return value, nil
		}
		return "", fmt.Errorf("webhooks: %s is required for dedupe", field)
	}
}

func BodyFieldTypeExtractor(field string) EventTypeExtractor {
	field = strings.TrimSpace(field)
	return func(req core.InboundRequest) string {
		return bodyField(req.Body, field)
	}
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req core.InboundRequest) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(headerValue(req.Headers, key)); value != "" {
				return value, nil
			}
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

func ChainDeliveryIDExtractors(extractors ...DeliveryIDExtractor) DeliveryIDExtractor {
	list := append([]DeliveryIDExtractor(nil), extractors...)
	return func(req core.InboundRequest) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			deliveryID, err := extractor(req)
			if err == nil && strings.TrimSpace(deliveryID) != "" {
				return strings.TrimSpace(deliveryID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

// NewStripeWebhookTemplate dedupes on the event id carried in the body,
// falling back to an explicit delivery header.
func NewStripeWebhookTemplate(secret string, tolerance time.Duration) ProviderWebhookTemplate {
	return ProviderWebhookTemplate{
		ProviderID: ProviderStripe,
		Verifier: StripeSignatureVerifier{
			Secret:    strings.TrimSpace(secret),
			Tolerance: tolerance,
		},
		Extractor: ChainDeliveryIDExtractors(
			BodyFieldExtractor("id"),
			HeaderDeliveryIDExtractor("X-Delivery-Id"),
		),
		TypeExtractor: BodyFieldTypeExtractor("type"),
	}
}

// Processor builds a processor for the template around the given ledger and
// handler.
func (t ProviderWebhookTemplate) Processor(ledger DeliveryLedger, handler Handler) *Processor {
	processor := NewProcessor(t.Verifier, ledger, handler)
	if t.Extractor != nil {
		processor.ExtractID = t.Extractor
	}
	processor.ExtractType = t.TypeExtractor
	return processor
}

func bodyField(body []byte, field string) string {
	if len(body) == 0 || field == "" {
		return ""
	}
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	value, ok := raw[field].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
