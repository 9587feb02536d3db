package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"

	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"

	relaycommand "github.com/goliatone/go-callback-relay/command"
	"github.com/goliatone/go-callback-relay/core"
	relayquery "github.com/goliatone/go-callback-relay/query"
)

const SessionReceivedMessage = "Images received successfully"

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	body, err := s.callbackBody(w, r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	payload, err := core.ParseCallbackPayload(body)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}

	collector := gocmd.NewResult[core.IngestResult]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	err = s.Facade.Commands().IngestSession.Execute(ctx, relaycommand.IngestSessionMessage{
		SessionID: sessionID,
		Payload:   payload,
	})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	if result, ok := collector.Load(); ok {
		glog.Ensure(s.Logger).Info("session callback stored",
			"session_id", result.SessionID,
			"regenerated", result.Regenerated,
			"swept", result.Swept,
		)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   SessionReceivedMessage,
		"sessionId": sessionID,
	})
}

// callbackBody accepts JSON or url-encoded callbacks and returns a JSON
// object body.
func (s *Server) callbackBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return s.decodeBody(w, r, SchemaCallback, nil)
	}
	raw, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, core.ValidationError("Request body must be url-encoded")
	}
	object := make(map[string]any, len(values))
	for key := range values {
		object[key] = values.Get(key)
	}
	encoded, err := json.Marshal(object)
	if err != nil {
		return nil, core.InternalError(err, "encode callback form")
	}
	return encoded, nil
}

func (s *Server) handleCheckImages(w http.ResponseWriter, r *http.Request) {
	status, err := s.Facade.Queries().CompletedImages.Query(r.Context(), relayquery.CompletedImagesMessage{
		SessionID: r.PathValue("sessionId"),
	})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, imageStatusBody(status))
}

// handleCheckRegeneratedImages reports a regeneration once; the flag is
// cleared by the read.
func (s *Server) handleCheckRegeneratedImages(w http.ResponseWriter, r *http.Request) {
	status, err := s.Facade.Queries().RegeneratedImages.Query(r.Context(), relayquery.RegeneratedImagesMessage{
		SessionID: r.PathValue("sessionId"),
	})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, imageStatusBody(status))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.Facade.Commands().DeleteSession.Execute(r.Context(), relaycommand.DeleteSessionMessage{
		SessionID: r.PathValue("sessionId"),
	})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Session cleared"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.Facade.Queries().ListSessions.Query(r.Context(), relayquery.ListSessionsMessage{})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	items := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		item := map[string]any{
			"sessionId":      summary.ID,
			"timestamp":      formatTime(summary.CreatedAt),
			"status":         summary.Status,
			"hasAllImages":   summary.HasAllImages,
			"hasRegenerated": summary.HasRegenerated,
		}
		if summary.RegeneratedAt != nil {
			item["regeneratedAt"] = formatTime(*summary.RegeneratedAt)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": items, "count": len(items)})
}

func (s *Server) handleSessionDetails(w http.ResponseWriter, r *http.Request) {
	session, err := s.Facade.Queries().GetSession.Query(r.Context(), relayquery.GetSessionMessage{
		SessionID: r.PathValue("sessionId"),
	})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionDetailsBody(session))
}

func imageStatusBody(status core.ImageStatus) map[string]any {
	if status.Images == nil || status.Status == core.SessionStatusPending {
		return map[string]any{"status": core.SessionStatusPending}
	}
	body := map[string]any{"status": status.Status}
	putImages(body, *status.Images)
	return body
}

// sessionDetailsBody flattens a record the way it was received: extra
// callback fields first, then the stored images and bookkeeping fields.
func sessionDetailsBody(session core.Session) map[string]any {
	body := core.CloneMap(session.Extra)
	putImages(body, session.Images)
	body["timestamp"] = formatTime(session.CreatedAt)
	body["status"] = session.Status
	if session.Regenerated {
		body["regenerated"] = true
	}
	if session.RegeneratedAt != nil {
		body["regeneratedAt"] = formatTime(*session.RegeneratedAt)
	}
	return body
}

// putImages leaves out fields a partial overwrite did not carry.
func putImages(body map[string]any, images core.ImageSet) {
	for key, value := range map[string]string{
		core.FieldHookImage:      images.Hook,
		core.FieldAgitationImage: images.Agitation,
		core.FieldSolutionImage:  images.Solution,
		core.FieldCTAImage:       images.CTA,
	} {
		if value != "" {
			body[key] = value
		}
	}
}
