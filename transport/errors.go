package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-callback-relay/core"
)

// restError builds the envelope returned for a failed outbound call. The
// HTTP code follows the category: bad input 400, upstream 502, else 500.
func restError(source error, category goerrors.Category, message string, fields map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}

	code, textCode := http.StatusInternalServerError, core.RelayErrorInternal
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		code, textCode = http.StatusBadRequest, core.RelayErrorBadInput
	case goerrors.CategoryExternal:
		code, textCode = http.StatusBadGateway, core.RelayErrorUpstreamFailure
	}

	metadata := map[string]any{"adapter": KindREST}
	for key, value := range fields {
		metadata[key] = value
	}
	return err.WithCode(code).WithTextCode(textCode).WithMetadata(metadata)
}
