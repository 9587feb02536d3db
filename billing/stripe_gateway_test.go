package billing

import "testing"

func TestCheckoutSessionParams_LeavesPaymentMethodsToAccount(t *testing.T) {
	params := checkoutSessionParams(CheckoutRequest{
		PriceID:    "price_pro",
		UserID:     "user_1",
		UserEmail:  " ada@example.com ",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
	})

	if params.PaymentMethodTypes != nil {
		t.Fatalf("expected payment method types to be unset, got %v", params.PaymentMethodTypes)
	}
	if params.Mode == nil || *params.Mode != "subscription" {
		t.Fatalf("expected subscription mode, got %v", params.Mode)
	}
	if len(params.LineItems) != 1 || *params.LineItems[0].Price != "price_pro" {
		t.Fatalf("unexpected line items %#v", params.LineItems)
	}
	if params.CustomerEmail == nil || *params.CustomerEmail != "ada@example.com" {
		t.Fatalf("unexpected customer email %v", params.CustomerEmail)
	}
	if params.ClientReferenceID == nil || *params.ClientReferenceID != "user_1" {
		t.Fatalf("unexpected client reference %v", params.ClientReferenceID)
	}
	if params.Metadata[ClerkUserIDMetadataKey] != "user_1" {
		t.Fatalf("expected clerk user id metadata, got %v", params.Metadata)
	}
	if params.SubscriptionData.Metadata[ClerkUserIDMetadataKey] != "user_1" {
		t.Fatalf("expected subscription metadata, got %v", params.SubscriptionData.Metadata)
	}
}

func TestCheckoutSessionParams_FallsBackToAirtableReference(t *testing.T) {
	params := checkoutSessionParams(CheckoutRequest{PriceID: "price_pro", AirtableUserID: "rec_9"})
	if params.ClientReferenceID == nil || *params.ClientReferenceID != "rec_9" {
		t.Fatalf("unexpected client reference %v", params.ClientReferenceID)
	}
	if params.CustomerEmail != nil {
		t.Fatalf("expected no customer email, got %v", *params.CustomerEmail)
	}
}
