package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-callback-relay/core"
)

// isoMillis renders instants the way browsers print Date#toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(isoMillis)
}

func formatTimePtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

// writeJSON writes a JSON response with the provided status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeError maps err to its envelope and writes {error: message} with the
// envelope's HTTP code.
func writeError(w http.ResponseWriter, logger glog.Logger, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		writeJSONError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	status := mapped.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		glog.Ensure(logger).Error("request failed",
			"text_code", mapped.TextCode,
			"status_code", status,
			"error", err.Error(),
		)
	}
	writeJSONError(w, status, mapped.Message)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
