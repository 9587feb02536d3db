// Package relay wires the session cache, delivery ledger and the
// command/query handlers that the HTTP surface dispatches to.
package relay

import (
	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/sessions"
)

type Config = core.Config

type Session = core.Session
type SessionSummary = core.SessionSummary
type ImageSet = core.ImageSet
type ImageStatus = core.ImageStatus
type CallbackPayload = core.CallbackPayload

var (
	WithSessionTTL   = sessions.WithTTL
	WithSessionClock = sessions.WithClock
	WithCacheLogger  = sessions.WithLogger
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewSessionCache builds the in-process store backing every session
// operation.
func NewSessionCache(opts ...sessions.Option) *sessions.Cache {
	return sessions.NewCache(opts...)
}
