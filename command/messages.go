package command

import "github.com/goliatone/go-callback-relay/core"

const (
	TypeIngestSession = "relay.command.session.ingest"
	TypeDeleteSession = "relay.command.session.delete"
)

type IngestSessionMessage struct {
	SessionID string
	Payload   core.CallbackPayload
}

func (IngestSessionMessage) Type() string { return TypeIngestSession }

// Validate only checks the id; image completeness depends on whether the
// session already exists and is decided by the store.
func (m IngestSessionMessage) Validate() error {
	if m.SessionID == "" {
		return commandValidationError("sessionId", "session id is required")
	}
	return nil
}

type DeleteSessionMessage struct {
	SessionID string
}

func (DeleteSessionMessage) Type() string { return TypeDeleteSession }

func (m DeleteSessionMessage) Validate() error {
	if m.SessionID == "" {
		return commandValidationError("sessionId", "session id is required")
	}
	return nil
}
