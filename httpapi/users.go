package httpapi

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/workflow"
)

func (s *Server) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if _, err := s.decodeBody(w, r, SchemaCheckUser, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, s.Logger, core.ValidationError("Email is required",
			goerrors.FieldError{Field: "email", Message: "required"}))
		return
	}
	if s.Users == nil {
		writeError(w, s.Logger, core.UpstreamError(workflow.CheckUserFailedMessage, map[string]any{
			"reason": "user lookup not configured",
		}))
		return
	}
	raw, err := s.Users.CheckUser(r.Context(), req.Email)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
