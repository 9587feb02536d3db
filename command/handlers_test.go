package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/sessions"
)

type stubSessionWriter struct {
	ingestFn func(ctx context.Context, sessionID string, payload core.CallbackPayload) (core.IngestResult, error)
	deleteFn func(ctx context.Context, sessionID string) error
}

func (s stubSessionWriter) Ingest(ctx context.Context, sessionID string, payload core.CallbackPayload) (core.IngestResult, error) {
	if s.ingestFn == nil {
		return core.IngestResult{SessionID: sessionID}, nil
	}
	return s.ingestFn(ctx, sessionID, payload)
}

func (s stubSessionWriter) Delete(ctx context.Context, sessionID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, sessionID)
}

func TestIngestSessionCommand_StoresResult(t *testing.T) {
	cache := sessions.NewCache()
	cmd := NewIngestSessionCommand(cache)
	collector := gocmd.NewResult[core.IngestResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, IngestSessionMessage{
		SessionID: "sess-1",
		Payload: core.CallbackPayload{Images: core.ImageSet{
			Hook: "a", Agitation: "b", Solution: "c", CTA: "d",
		}},
	})
	if err != nil {
		t.Fatalf("execute ingest: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.SessionID != "sess-1" || result.Regenerated {
		t.Fatalf("unexpected result: %#v", result)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cached session, got %d", cache.Len())
	}
}

func TestIngestSessionCommand_PropagatesValidationError(t *testing.T) {
	cmd := NewIngestSessionCommand(sessions.NewCache())
	err := cmd.Execute(context.Background(), IngestSessionMessage{
		SessionID: "sess-1",
		Payload:   core.CallbackPayload{Images: core.ImageSet{Hook: "a"}},
	})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Message != sessions.MissingImagesMessage {
		t.Fatalf("unexpected message %q", rich.Message)
	}
}

func TestIngestSessionMessage_ValidateRejectsEmptyID(t *testing.T) {
	err := (IngestSessionMessage{}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.RelayErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.RelayErrorBadInput, rich.TextCode)
	}
}

func TestDeleteSessionCommand_Delegates(t *testing.T) {
	called := ""
	cmd := NewDeleteSessionCommand(stubSessionWriter{
		deleteFn: func(_ context.Context, sessionID string) error {
			called = sessionID
			return nil
		},
	})
	if err := cmd.Execute(context.Background(), DeleteSessionMessage{SessionID: "sess-9"}); err != nil {
		t.Fatalf("execute delete: %v", err)
	}
	if called != "sess-9" {
		t.Fatalf("expected delete for sess-9, got %q", called)
	}

	sentinel := errors.New("store down")
	cmd = NewDeleteSessionCommand(stubSessionWriter{
		deleteFn: func(context.Context, string) error { return sentinel },
	})
	if err := cmd.Execute(context.Background(), DeleteSessionMessage{SessionID: "sess-9"}); !errors.Is(err, sentinel) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCommands_NilStoreReturnsRichError(t *testing.T) {
	var cmd *IngestSessionCommand
	err := cmd.Execute(context.Background(), IngestSessionMessage{SessionID: "x"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.RelayErrorInternal {
		t.Fatalf("unexpected envelope: %q %q", rich.Category, rich.TextCode)
	}
}
