package query

import (
	"context"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/webhooks"
)

type SessionReader interface {
	Completed(ctx context.Context, sessionID string) (core.ImageStatus, error)
	Regenerated(ctx context.Context, sessionID string) (core.ImageStatus, error)
	List(ctx context.Context) ([]core.SessionSummary, error)
	Get(ctx context.Context, sessionID string) (core.Session, error)
}

type CompletedImagesQuery struct {
	reader SessionReader
}

func NewCompletedImagesQuery(reader SessionReader) *CompletedImagesQuery {
	return &CompletedImagesQuery{reader: reader}
}

func (q *CompletedImagesQuery) Query(ctx context.Context, msg CompletedImagesMessage) (core.ImageStatus, error) {
	if q == nil || q.reader == nil {
		return core.ImageStatus{}, queryDependencyError("query: session reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ImageStatus{}, err
	}
	return q.reader.Completed(ctx, msg.SessionID)
}

type RegeneratedImagesQuery struct {
	reader SessionReader
}

func NewRegeneratedImagesQuery(reader SessionReader) *RegeneratedImagesQuery {
	return &RegeneratedImagesQuery{reader: reader}
}

func (q *RegeneratedImagesQuery) Query(ctx context.Context, msg RegeneratedImagesMessage) (core.ImageStatus, error) {
	if q == nil || q.reader == nil {
		return core.ImageStatus{}, queryDependencyError("query: session reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ImageStatus{}, err
	}
	return q.reader.Regenerated(ctx, msg.SessionID)
}

type ListSessionsQuery struct {
	reader SessionReader
}

func NewListSessionsQuery(reader SessionReader) *ListSessionsQuery {
	return &ListSessionsQuery{reader: reader}
}

func (q *ListSessionsQuery) Query(ctx context.Context, _ ListSessionsMessage) ([]core.SessionSummary, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: session reader is required")
	}
	return q.reader.List(ctx)
}

type GetSessionQuery struct {
	reader SessionReader
}

func NewGetSessionQuery(reader SessionReader) *GetSessionQuery {
	return &GetSessionQuery{reader: reader}
}

func (q *GetSessionQuery) Query(ctx context.Context, msg GetSessionMessage) (core.Session, error) {
	if q == nil || q.reader == nil {
		return core.Session{}, queryDependencyError("query: session reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Session{}, err
	}
	return q.reader.Get(ctx, msg.SessionID)
}

type ListDeliveriesQuery struct {
	lister webhooks.DeliveryLister
}

func NewListDeliveriesQuery(lister webhooks.DeliveryLister) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{lister: lister}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) (webhooks.DeliveryPage, error) {
	if q == nil || q.lister == nil {
		return webhooks.DeliveryPage{}, queryDependencyError("query: delivery lister is required")
	}
	if err := msg.Validate(); err != nil {
		return webhooks.DeliveryPage{}, err
	}
	return q.lister.List(ctx, msg.Filter.Normalize())
}
