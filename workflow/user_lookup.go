package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-callback-relay/core"
	"github.com/goliatone/go-callback-relay/transport"
)

const CheckUserFailedMessage = "Failed to check user in Airtable"

// UserLookupClient relays an email lookup to the workflow engine webhook and
// passes its JSON answer through untouched.
type UserLookupClient struct {
	Transport  core.TransportAdapter
	WebhookURL string
	Timeout    time.Duration
	Logger     glog.Logger
}

func NewUserLookupClient(adapter core.TransportAdapter, webhookURL string) *UserLookupClient {
	return &UserLookupClient{
		Transport:  adapter,
		WebhookURL: strings.TrimSpace(webhookURL),
		Timeout:    15 * time.Second,
		Logger:     glog.Nop(),
	}
}

func (c *UserLookupClient) CheckUser(ctx context.Context, email string) (json.RawMessage, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, core.ValidationError("Email is required",
			goerrors.FieldError{Field: "email", Message: "required"})
	}
	if c == nil || c.Transport == nil || strings.TrimSpace(c.WebhookURL) == "" {
		return nil, core.UpstreamError(CheckUserFailedMessage, map[string]any{"reason": "webhook not configured"})
	}
	logger := glog.Ensure(c.Logger)

	req, err := transport.JSONRequest(http.MethodPost, c.WebhookURL, map[string]string{"email": email}, nil)
	if err != nil {
		return nil, err
	}
	req.Timeout = c.Timeout

	res, err := c.Transport.Do(ctx, req)
	if err != nil {
		logger.Error("user lookup request failed", "error", err)
		return nil, core.WrapUpstream(err, CheckUserFailedMessage)
	}
	if !res.OK() {
		logger.Error("user lookup rejected", "status_code", res.StatusCode)
		return nil, core.UpstreamError(CheckUserFailedMessage, map[string]any{"status_code": res.StatusCode})
	}
	if !json.Valid(res.Body) {
		logger.Error("user lookup returned invalid json", "status_code", res.StatusCode)
		return nil, core.UpstreamError(CheckUserFailedMessage, map[string]any{"reason": "invalid json"})
	}
	return json.RawMessage(res.Body), nil
}
