package sqlstore

import "github.com/goliatone/go-callback-relay/webhooks"

var (
	_ webhooks.DeliveryLedger = (*DeliveryStore)(nil)
	_ webhooks.DeliveryLister = (*DeliveryStore)(nil)
)
