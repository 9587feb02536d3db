package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionStatusPending     SessionStatus = "pending"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusRegenerated SessionStatus = "regenerated"
)

const (
	FieldHookImage      = "hook_image_url"
	FieldAgitationImage = "agitation_image_url"
	FieldSolutionImage  = "solution_image_url"
	FieldCTAImage       = "cta_image_url"
)

var imageFields = []string{FieldHookImage, FieldAgitationImage, FieldSolutionImage, FieldCTAImage}

type ImageSet struct {
	Hook      string `json:"hook_image_url"`
	Agitation string `json:"agitation_image_url"`
	Solution  string `json:"solution_image_url"`
	CTA       string `json:"cta_image_url"`
}

// Missing lists the wire names of the image fields that are empty.
func (s ImageSet) Missing() []string {
	missing := make([]string, 0, len(imageFields))
	for _, field := range imageFields {
		if s.value(field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func (s ImageSet) Complete() bool {
	return len(s.Missing()) == 0
}

func (s ImageSet) value(field string) string {
	switch field {
	case FieldHookImage:
		return s.Hook
	case FieldAgitationImage:
		return s.Agitation
	case FieldSolutionImage:
		return s.Solution
	case FieldCTAImage:
		return s.CTA
	default:
		return ""
	}
}

// CallbackPayload is the decoded body of a workflow-engine callback. Extra
// holds every non-image field so it can be echoed back by the details view.
type CallbackPayload struct {
	Images ImageSet
	Extra  map[string]any
}

// ParseCallbackPayload decodes a callback body. An empty body yields an empty
// payload. An image field counts as present when its JSON value is truthy:
// any non-empty string, a non-zero number, true, an object or an array.
// Non-string values are kept in their JSON text form.
func ParseCallbackPayload(body []byte) (CallbackPayload, error) {
	payload := CallbackPayload{Extra: map[string]any{}}
	if len(strings.TrimSpace(string(body))) == 0 {
		return payload, nil
	}
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return CallbackPayload{}, ValidationError("callback body must be a JSON object")
	}
	for key, value := range raw {
		switch key {
		case FieldHookImage:
			payload.Images.Hook = imageValue(value)
		case FieldAgitationImage:
			payload.Images.Agitation = imageValue(value)
		case FieldSolutionImage:
			payload.Images.Solution = imageValue(value)
		case FieldCTAImage:
			payload.Images.CTA = imageValue(value)
		case "timestamp", "status", "regenerated", "regeneratedAt":
			// reserved for the record itself
		default:
			payload.Extra[key] = value
		}
	}
	return payload, nil
}

func imageValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return ""
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

type Session struct {
	ID            string
	Status        SessionStatus
	Images        ImageSet
	Extra         map[string]any
	Regenerated   bool
	CreatedAt     time.Time
	RegeneratedAt *time.Time
}

type SessionSummary struct {
	ID             string
	CreatedAt      time.Time
	Status         SessionStatus
	HasAllImages   bool
	HasRegenerated bool
	RegeneratedAt  *time.Time
}

// ImageStatus is the answer to a polling read. Images is nil while pending.
type ImageStatus struct {
	Status SessionStatus
	Images *ImageSet
}

func PendingStatus() ImageStatus {
	return ImageStatus{Status: SessionStatusPending}
}

type IngestResult struct {
	SessionID   string
	Regenerated bool
	Swept       int
}

// MetadataUpdate is the public-metadata patch sent to the identity provider.
type MetadataUpdate map[string]any

func (u MetadataUpdate) Empty() bool {
	return len(u) == 0
}

func CloneMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func CloneTime(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
