package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/transport"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxErrorBodyBytes     = 2048
)

// MetadataClient patches user public metadata through the Clerk backend API.
type MetadataClient struct {
	Transport core.TransportAdapter
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Logger    glog.Logger
}

func NewMetadataClient(transport core.TransportAdapter, baseURL string, apiKey string) *MetadataClient {
	return &MetadataClient{
		Transport: transport,
		BaseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:    strings.TrimSpace(apiKey),
		Timeout:   defaultRequestTimeout,
		Logger:    glog.Nop(),
	}
}

func (c *MetadataClient) UpdatePublicMetadata(ctx context.Context, userID string, update core.MetadataUpdate) error {
	if c == nil || c.Transport == nil {
		return core.InternalError(nil, "identity: metadata client requires a transport")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.ValidationError("identity: user id is required",
			goerrors.FieldError{Field: "userId", Message: "required"})
	}
	if c.APIKey == "" {
		return core.InternalError(nil, "identity: clerk api key is not configured")
	}

	endpoint := fmt.Sprintf("%s/users/%s/metadata", c.baseURL(), url.PathEscape(userID))
	body := map[string]any{"public_metadata": map[string]any(update)}
	req, err := transport.JSONRequest(http.MethodPatch, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.APIKey,
	})
	if err != nil {
		return err
	}
	req.Timeout = c.Timeout

	res, err := c.Transport.Do(ctx, req)
	if err != nil {
		wrapped := core.WrapUpstream(err, "Failed to update Clerk")
		wrapped.Message = "Failed to update Clerk: " + causeText(err)
		return wrapped
	}
	if !res.OK() {
		text := strings.TrimSpace(string(res.Body))
		if len(text) > maxErrorBodyBytes {
			text = text[:maxErrorBodyBytes]
		}
		return core.UpstreamError(
			fmt.Sprintf("Failed to update Clerk: %d %s", res.StatusCode, text),
			map[string]any{"status_code": res.StatusCode, "user_id": userID},
		)
	}
	glog.Ensure(c.Logger).Debug("clerk metadata updated", "user_id", userID, "fields", len(update))
	return nil
}

func (c *MetadataClient) baseURL() string {
	if strings.TrimSpace(c.BaseURL) == "" {
		return core.DefaultClerkAPIURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

var _ core.MetadataWriter = (*MetadataClient)(nil)

// causeText flattens an error chain into the message shown to callers,
// without the category prefix goerrors puts on Error().
func causeText(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return err.Error()
	}
	if rich.Source != nil {
		return rich.Message + ": " + rich.Source.Error()
	}
	return rich.Message
}
