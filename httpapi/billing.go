package httpapi

import (
	"net/http"

	"github.com/goliatone/go-callback-relay/billing"
	"github.com/goliatone/go-callback-relay/core"
)

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req billing.CheckoutRequest
	if _, err := s.decodeBody(w, r, SchemaCheckout, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	service, err := s.billing()
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	url, err := service.CreateCheckout(r.Context(), req)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customerId"`
	}
	if _, err := s.decodeBody(w, r, SchemaCancelSubscription, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	service, err := s.billing()
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	result, err := service.CancelSubscription(r.Context(), req.CustomerID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreatePortalSession(w http.ResponseWriter, r *http.Request) {
	var req billing.PortalRequest
	if _, err := s.decodeBody(w, r, SchemaPortalSession, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	service, err := s.billing()
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	url, err := service.CreatePortalSession(r.Context(), req)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *Server) billing() (BillingService, error) {
	if s.Billing == nil {
		return nil, core.InternalError(nil, "billing is not configured")
	}
	return s.Billing, nil
}
