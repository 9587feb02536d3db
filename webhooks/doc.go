// Package webhooks verifies inbound payment-provider deliveries and
// dispatches them through a claim lifecycle:
// processing -> processed|failed.
// A failed claim is released so the provider's own redelivery runs the
// handler again, while a processed delivery is answered as deduped.
package webhooks
