package relay

import (
	"fmt"

	relaycommand "github.com/goliatone/go-callback-relay/command"
	"github.com/goliatone/go-callback-relay/core"
	relayquery "github.com/goliatone/go-callback-relay/query"
	"github.com/goliatone/go-callback-relay/webhooks"
)

type Commands struct {
	IngestSession *relaycommand.IngestSessionCommand
	DeleteSession *relaycommand.DeleteSessionCommand
}

type Queries struct {
	CompletedImages   *relayquery.CompletedImagesQuery
	RegeneratedImages *relayquery.RegeneratedImagesQuery
	ListSessions      *relayquery.ListSessionsQuery
	GetSession        *relayquery.GetSessionQuery
	// ListDeliveries is nil when the ledger cannot list.
	ListDeliveries *relayquery.ListDeliveriesQuery
}

type Facade struct {
	store    core.SessionStore
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	ledger webhooks.DeliveryLedger
	lister webhooks.DeliveryLister
}

// WithDeliveryLedger exposes the ledger's records through ListDeliveries when
// the ledger also implements webhooks.DeliveryLister.
func WithDeliveryLedger(ledger webhooks.DeliveryLedger) FacadeOption {
	return func(options *facadeOptions) {
		options.ledger = ledger
	}
}

func WithDeliveryLister(lister webhooks.DeliveryLister) FacadeOption {
	return func(options *facadeOptions) {
		options.lister = lister
	}
}

func NewFacade(store core.SessionStore, opts ...FacadeOption) (*Facade, error) {
	if store == nil {
		return nil, fmt.Errorf("relay: session store is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	lister := cfg.lister
	if lister == nil {
		lister = resolveDeliveryLister(cfg.ledger)
	}

	facade := &Facade{store: store}
	facade.commands = Commands{
		IngestSession: relaycommand.NewIngestSessionCommand(store),
		DeleteSession: relaycommand.NewDeleteSessionCommand(store),
	}
	facade.queries = Queries{
		CompletedImages:   relayquery.NewCompletedImagesQuery(store),
		RegeneratedImages: relayquery.NewRegeneratedImagesQuery(store),
		ListSessions:      relayquery.NewListSessionsQuery(store),
		GetSession:        relayquery.NewGetSessionQuery(store),
	}
	if lister != nil {
		facade.queries.ListDeliveries = relayquery.NewListDeliveriesQuery(lister)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Store() core.SessionStore {
	if f == nil {
		return nil
	}
	return f.store
}

func resolveDeliveryLister(ledger webhooks.DeliveryLedger) webhooks.DeliveryLister {
	if ledger == nil {
		return nil
	}
	lister, ok := ledger.(webhooks.DeliveryLister)
	if !ok {
		return nil
	}
	return lister
}
