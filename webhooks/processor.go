package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-callback-relay/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type Handler interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type HandlerFunc func(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)

func (f HandlerFunc) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	return f(ctx, req)
}

type DeliveryIDExtractor func(req core.InboundRequest) (string, error)

type EventTypeExtractor func(req core.InboundRequest) string

type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Handler     Handler
	ExtractID   DeliveryIDExtractor
	ExtractType EventTypeExtractor
	ClaimLease  time.Duration
	Logger      glog.Logger
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, handler Handler) *Processor {
	return &Processor{
		Verifier:   verifier,
		Ledger:     ledger,
		Handler:    handler,
		ExtractID:  DefaultDeliveryIDExtractor,
		ClaimLease: 30 * time.Second,
		Logger:     glog.Nop(),
	}
}

// Process verifies, deduplicates and dispatches one delivery. Without a
// ledger every verified delivery is handed to the handler.
func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Handler == nil {
		return core.InboundResult{}, core.InternalError(nil, "webhooks: processor requires a handler")
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		return core.InboundResult{}, core.ValidationError("webhooks: provider id is required")
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return p.reject(req, err)
		}
	}
	if p.Ledger == nil {
		return p.dispatch(ctx, req, nil)
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = DefaultDeliveryIDExtractor
	}
	deliveryID, err := extractor(req)
	if err != nil {
		return p.reject(req, core.ValidationError(err.Error()))
	}
	delivery, claimed, err := p.claim(ctx, req, deliveryID)
	if err != nil {
		return core.InboundResult{}, err
	}
	if !claimed {
		p.logger().Info("webhook delivery deduped",
			"provider_id", req.ProviderID,
			"delivery_id", delivery.DeliveryID,
			"status", delivery.Status,
		)
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"provider_id": req.ProviderID,
				"delivery_id": delivery.DeliveryID,
				"status":      delivery.Status,
				"deduped":     true,
			},
		}, nil
	}
	return p.dispatch(ctx, req, &delivery)
}

// reject answers a delivery that failed before reaching the handler. Only
// these results carry the rejected flag; handler failures never do.
func (p *Processor) reject(req core.InboundRequest, err error) (core.InboundResult, error) {
	p.logger().Warn("webhook rejected", "provider_id", req.ProviderID, "error", err.Error())
	return core.InboundResult{
		StatusCode: http.StatusBadRequest,
		Metadata:   map[string]any{"provider_id": req.ProviderID, "rejected": true},
	}, err
}

// Rejected reports whether result comes from a delivery refused before
// dispatch (bad signature, unreadable delivery id).
func Rejected(result core.InboundResult) bool {
	rejected, _ := result.Metadata["rejected"].(bool)
	return rejected
}

func (p *Processor) claim(ctx context.Context, req core.InboundRequest, deliveryID string) (DeliveryRecord, bool, error) {
	eventType := ""
	if p.ExtractType != nil {
		eventType = p.ExtractType(req)
	}
	delivery, claimed, err := p.Ledger.Claim(ctx, req.ProviderID, deliveryID, eventType, p.claimLease())
	if err != nil {
		return DeliveryRecord{}, false, core.InternalError(err, "webhooks: claim delivery failed")
	}
	return delivery, claimed, nil
}

// dispatch runs the handler. With a claimed delivery the outcome settles the
// claim: success completes it, any failure releases it for redelivery.
func (p *Processor) dispatch(ctx context.Context, req core.InboundRequest, delivery *DeliveryRecord) (core.InboundResult, error) {
	result, err := p.Handler.Handle(ctx, req)
	if err == nil && (!result.Accepted || result.StatusCode >= http.StatusInternalServerError) {
		err = fmt.Errorf("webhooks: delivery handler returned status %d", result.StatusCode)
	}
	if err != nil {
		if delivery != nil {
			p.release(ctx, *delivery, err)
		}
		delete(result.Metadata, "rejected")
		return result, err
	}

	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider_id"] = req.ProviderID
	if delivery == nil {
		return result, nil
	}
	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return core.InboundResult{}, core.InternalError(err, "webhooks: complete delivery failed")
	}
	result.Metadata["delivery_id"] = delivery.DeliveryID
	return result, nil
}

func (p *Processor) release(ctx context.Context, delivery DeliveryRecord, cause error) {
	logger := p.logger()
	logger.Error("webhook delivery failed",
		"provider_id", delivery.ProviderID,
		"delivery_id", delivery.DeliveryID,
		"attempts", delivery.Attempts,
		"error", cause.Error(),
	)
	if err := p.Ledger.Release(ctx, delivery.ClaimID, cause); err != nil {
		logger.Error("webhook claim release failed", "delivery_id", delivery.DeliveryID, "error", err.Error())
	}
}

func (p *Processor) logger() glog.Logger {
	return glog.Ensure(p.Logger)
}

func DefaultDeliveryIDExtractor(req core.InboundRequest) (string, error) {
	if req.Metadata != nil {
		if value := strings.TrimSpace(fmt.Sprint(req.Metadata["delivery_id"])); value != "" && value != "<nil>" {
			return value, nil
		}
	}
	if value := headerValue(req.Headers, "x-delivery-id"); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
