package sqlstore

import (
	"fmt"

	"github.com/uptrace/bun"
)

// BunProvider is satisfied by the persistence client returned from Open.
type BunProvider interface {
	DB() *bun.DB
}

// NewLedger builds the durable delivery ledger on an opened persistence
// client.
func NewLedger(client BunProvider) (*DeliveryStore, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	db := client.DB()
	if db == nil {
		return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
	}
	return NewDeliveryStore(db)
}
