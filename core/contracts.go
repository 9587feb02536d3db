package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// SessionStore holds callback results keyed by session id. The in-process
// cache is the only implementation; handlers depend on this contract so a
// different store can be swapped in at the composition root.
type SessionStore interface {
	Ingest(ctx context.Context, sessionID string, payload CallbackPayload) (IngestResult, error)
	Completed(ctx context.Context, sessionID string) (ImageStatus, error)
	// Regenerated clears the regenerated flag as a side effect of reading it.
	Regenerated(ctx context.Context, sessionID string) (ImageStatus, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]SessionSummary, error)
	Get(ctx context.Context, sessionID string) (Session, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

// OK reports whether the upstream answered with a 2xx status.
func (r TransportResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

// MetadataWriter patches the public metadata of a user held by the identity
// provider.
type MetadataWriter interface {
	UpdatePublicMetadata(ctx context.Context, userID string, update MetadataUpdate) error
}
