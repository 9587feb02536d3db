package httpapi

import (
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/webhooks"
)

// handleStripeWebhook reads the raw body so the signature can be checked
// against the exact bytes the provider signed. Rejected deliveries are
// answered in plain text, processing failures as JSON.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	logger := glog.Ensure(s.Logger)
	body, err := s.readBody(w, r)
	if err != nil {
		writeText(w, http.StatusBadRequest, "Webhook Error: "+core.MapError(err).Message)
		return
	}
	if s.Webhooks == nil {
		writeText(w, http.StatusBadRequest, "Webhook Error: webhook signing secret is not configured")
		return
	}

	result, err := s.Webhooks.Process(r.Context(), core.InboundRequest{
		ProviderID: webhooks.ProviderStripe,
		Headers:    flattenHeaders(r.Header),
		Body:       body,
		Metadata:   map[string]any{"request_id": RequestIDFromContext(r.Context())},
	})
	if err != nil {
		mapped := core.MapError(err)
		if webhooks.Rejected(result) {
			logger.Warn("webhook rejected", "text_code", mapped.TextCode, "error", mapped.Message)
			writeText(w, http.StatusBadRequest, "Webhook Error: "+mapped.Message)
			return
		}
		logger.Error("webhook processing failed", "text_code", mapped.TextCode, "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, mapped.Message)
		return
	}

	response := map[string]any{"received": true}
	if deduped, _ := result.Metadata["deduped"].(bool); deduped {
		response["deduped"] = true
	}
	writeJSON(w, http.StatusOK, response)
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}
