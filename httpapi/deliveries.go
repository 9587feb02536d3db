package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-callback-relay/core"
	relayquery "github.com/goliatone/go-callback-relay/query"
	"github.com/goliatone/go-callback-relay/webhooks"
)

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	list := s.Facade.Queries().ListDeliveries
	if list == nil {
		writeError(w, s.Logger, core.NotFoundError("Delivery listing is not available"))
		return
	}
	query := r.URL.Query()
	page, err := intParam(query.Get("page"), "page")
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	perPage, err := intParam(query.Get("per_page"), "per_page")
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}

	result, err := list.Query(r.Context(), relayquery.ListDeliveriesMessage{
		Filter: webhooks.DeliveryFilter{
			ProviderID: query.Get("provider"),
			Page:       page,
			PerPage:    perPage,
		},
	})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, record := range result.Items {
		items = append(items, map[string]any{
			"id":               record.ID,
			"provider_id":      record.ProviderID,
			"delivery_id":      record.DeliveryID,
			"event_type":       record.EventType,
			"status":           record.Status,
			"attempts":         record.Attempts,
			"last_error":       record.LastError,
			"lease_expires_at": formatTimePtr(record.LeaseExpiresAt),
			"created_at":       formatTime(record.CreatedAt),
			"updated_at":       formatTime(record.UpdatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deliveries": items,
		"total":      result.Total,
		"page":       result.Page,
		"per_page":   result.PerPage,
	})
}

func intParam(raw string, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, core.ValidationError(name+" must be a non-negative integer",
			goerrors.FieldError{Field: name, Message: "invalid"})
	}
	return value, nil
}
