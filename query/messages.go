package query

import "github.com/goliatone/go-callback-relay/webhooks"

const (
	TypeCompletedImages   = "relay.query.session.completed"
	TypeRegeneratedImages = "relay.query.session.regenerated"
	TypeListSessions      = "relay.query.session.list"
	TypeGetSession        = "relay.query.session.get"
	TypeListDeliveries    = "relay.query.delivery.list"
)

type CompletedImagesMessage struct {
	SessionID string
}

func (CompletedImagesMessage) Type() string { return TypeCompletedImages }

func (m CompletedImagesMessage) Validate() error {
	return requireSessionID(m.SessionID)
}

// RegeneratedImagesMessage drains the regenerated flag of the session it
// reads. Dispatching it twice returns the images only once.
type RegeneratedImagesMessage struct {
	SessionID string
}

func (RegeneratedImagesMessage) Type() string { return TypeRegeneratedImages }

func (m RegeneratedImagesMessage) Validate() error {
	return requireSessionID(m.SessionID)
}

type ListSessionsMessage struct{}

func (ListSessionsMessage) Type() string { return TypeListSessions }

type GetSessionMessage struct {
	SessionID string
}

func (GetSessionMessage) Type() string { return TypeGetSession }

func (m GetSessionMessage) Validate() error {
	return requireSessionID(m.SessionID)
}

type ListDeliveriesMessage struct {
	Filter webhooks.DeliveryFilter
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be positive")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be positive")
	}
	return nil
}

func requireSessionID(sessionID string) error {
	if sessionID == "" {
		return queryValidationError("sessionId", "session id is required")
	}
	return nil
}
