package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-callback-relay/core"
)

var (
	_ gocmd.Commander[IngestSessionMessage] = (*IngestSessionCommand)(nil)
	_ gocmd.Commander[DeleteSessionMessage] = (*DeleteSessionCommand)(nil)

	_ SessionWriter = (core.SessionStore)(nil)
)
