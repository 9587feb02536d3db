package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-callback-relay/core"
)

type SessionWriter interface {
	Ingest(ctx context.Context, sessionID string, payload core.CallbackPayload) (core.IngestResult, error)
	Delete(ctx context.Context, sessionID string) error
}

type IngestSessionCommand struct {
	store SessionWriter
}

func NewIngestSessionCommand(store SessionWriter) *IngestSessionCommand {
	return &IngestSessionCommand{store: store}
}

func (c *IngestSessionCommand) Execute(ctx context.Context, msg IngestSessionMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: session store is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.store.Ingest(ctx, msg.SessionID, msg.Payload)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteSessionCommand struct {
	store SessionWriter
}

func NewDeleteSessionCommand(store SessionWriter) *DeleteSessionCommand {
	return &DeleteSessionCommand{store: store}
}

func (c *DeleteSessionCommand) Execute(ctx context.Context, msg DeleteSessionMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: session store is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.store.Delete(ctx, msg.SessionID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
