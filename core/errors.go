package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput         = "RELAY_BAD_INPUT"
	RelayErrorSignatureInvalid = "RELAY_SIGNATURE_INVALID"
	RelayErrorUpstreamFailure  = "RELAY_UPSTREAM_FAILURE"
	RelayErrorNotFound         = "RELAY_NOT_FOUND"
	RelayErrorInternal         = "RELAY_INTERNAL_ERROR"
)

func ValidationError(message string, fields ...goerrors.FieldError) *goerrors.Error {
	return goerrors.NewValidation(message, fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(RelayErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func SignatureError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(RelayErrorSignatureInvalid)
}

// UpstreamError keeps the upstream message so it reaches the HTTP caller.
func UpstreamError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(RelayErrorUpstreamFailure)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func WrapUpstream(source error, message string) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(RelayErrorUpstreamFailure)
}

func NotFoundError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(RelayErrorNotFound)
}

func InternalError(source error, message string) *goerrors.Error {
	if source == nil {
		return ensureRelayErrorEnvelope(goerrors.New(message, goerrors.CategoryInternal))
	}
	return ensureRelayErrorEnvelope(goerrors.Wrap(source, goerrors.CategoryInternal, message))
}

// MapError normalizes any error into a relay envelope carrying an HTTP code
// and a text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRelayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"):
		return ensureRelayErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryAuth).WithTextCode(RelayErrorSignatureInvalid))
	case strings.Contains(msg, "not found"):
		return ensureRelayErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "missing"):
		return ensureRelayErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = relayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRelayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RelayErrorBadInput
	case goerrors.CategoryAuth:
		return RelayErrorSignatureInvalid
	case goerrors.CategoryNotFound:
		return RelayErrorNotFound
	case goerrors.CategoryExternal:
		return RelayErrorUpstreamFailure
	default:
		return RelayErrorInternal
	}
}

// Signature failures answer 400 rather than 401 to match what payment
// providers expect from a rejected webhook.
func relayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryAuth:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
