package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/webhooks"
)

var (
	_ gocmd.Querier[CompletedImagesMessage, core.ImageStatus]     = (*CompletedImagesQuery)(nil)
	_ gocmd.Querier[RegeneratedImagesMessage, core.ImageStatus]   = (*RegeneratedImagesQuery)(nil)
	_ gocmd.Querier[ListSessionsMessage, []core.SessionSummary]   = (*ListSessionsQuery)(nil)
	_ gocmd.Querier[GetSessionMessage, core.Session]              = (*GetSessionQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, webhooks.DeliveryPage] = (*ListDeliveriesQuery)(nil)

	_ SessionReader = (core.SessionStore)(nil)
)
