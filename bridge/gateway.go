package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// httpCallTimeout bounds proxied HTTP verbs and UI open commands.
	httpCallTimeout = 10 * time.Second

	// refreshTimeout bounds the lightweight refresh command.
	refreshTimeout = 5 * time.Second

	// maxRelativeURLLen bounds proxied relative URLs.
	maxRelativeURLLen = 2000

	// maxBodyBytes bounds a serialized request body at 1 MiB.
	maxBodyBytes = 1 << 20
)

// allowedPathPrefixes is the whitelist of path roots the host will
// proxy. Anything else is rejected before a message is sent.
var allowedPathPrefixes = []string{
	"/entity/",
	"/query/",
	"/search/",
	"/meta/",
	"/services/",
	"/find/",
}

// HTTPGet proxies a GET for the given relative URL through the host
// and returns the raw reply payload.
func (c *Client) HTTPGet(ctx context.Context, relativeURL string) (json.RawMessage, error) {
	return c.httpCall(ctx, msgHTTPGet, relativeURL, nil)
}

// HTTPPost proxies a POST with a JSON-encodable body.
func (c *Client) HTTPPost(ctx context.Context, relativeURL string, body any) (json.RawMessage, error) {
	return c.httpCall(ctx, msgHTTPPost, relativeURL, body)
}

// HTTPPut proxies a PUT with a JSON-encodable body.
func (c *Client) HTTPPut(ctx context.Context, relativeURL string, body any) (json.RawMessage, error) {
	return c.httpCall(ctx, msgHTTPPut, relativeURL, body)
}

// HTTPDelete proxies a DELETE for the given relative URL.
func (c *Client) HTTPDelete(ctx context.Context, relativeURL string) (json.RawMessage, error) {
	return c.httpCall(ctx, msgHTTPDelete, relativeURL, nil)
}

// Open asks the host to open an entity window. Params pass through to
// the host unmodified; transport errors propagate verbatim.
func (c *Client) Open(ctx context.Context, params any) error {
	return c.uiCall(ctx, msgOpen, params, httpCallTimeout)
}

// OpenList asks the host to open a list view.
func (c *Client) OpenList(ctx context.Context, params any) error {
	return c.uiCall(ctx, msgOpenList, params, httpCallTimeout)
}

// Refresh asks the host to refresh the current view.
func (c *Client) Refresh(ctx context.Context) error {
	return c.uiCall(ctx, msgRefresh, nil, refreshTimeout)
}

// ensureRegistered is the gate in front of every outbound call: fail
// fast outside an embeddable context, transparently register when the
// session has not been established yet.
func (c *Client) ensureRegistered(ctx context.Context) error {
	if !c.embedded() {
		return ErrNotEmbedded
	}
	if c.State() == StateRegistered {
		return nil
	}
	return c.Register(ctx, RegistrationInfo{})
}

// httpCall is the common shape of the proxied HTTP verbs: gate on
// registration, validate the URL, bound the body, send, unwrap.
func (c *Client) httpCall(ctx context.Context, name, relativeURL string, body any) (json.RawMessage, error) {
	if err := c.ensureRegistered(ctx); err != nil {
		return nil, err
	}

	if err := validateRelativeURL(relativeURL); err != nil {
		return nil, err
	}

	req := httpRequest{RelativeURL: relativeURL}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		if len(raw) > maxBodyBytes {
			return nil, fmt.Errorf("%w: body is %d bytes, limit is %d", ErrPayloadTooLarge, len(raw), maxBodyBytes)
		}
		req.Body = json.RawMessage(raw)
	}

	reply, err := c.transport.Send(ctx, name, req, SendOptions{Timeout: httpCallTimeout})
	if err != nil {
		// Transport detail stays in the log; callers get the generic
		// call-specific failure.
		c.logger.Debug("transport call failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", name, ErrCallFailed)
	}

	return reply, nil
}

// uiCall sends a UI command. Unlike the HTTP verbs, transport errors
// propagate to the caller as-is.
func (c *Client) uiCall(ctx context.Context, name string, params any, timeout time.Duration) error {
	if err := c.ensureRegistered(ctx); err != nil {
		return err
	}

	_, err := c.transport.Send(ctx, name, params, SendOptions{Timeout: timeout})
	return err
}

// validateRelativeURL enforces the proxied-URL constraints: rooted,
// no traversal or scheme confusion, bounded length, whitelisted
// prefix.
func validateRelativeURL(rel string) error {
	if rel == "" || !strings.HasPrefix(rel, "/") {
		return fmt.Errorf("%w: must start with /", ErrInvalidURL)
	}
	if len(rel) > maxRelativeURLLen {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidURL, maxRelativeURLLen)
	}
	if strings.Contains(rel, "..") {
		return fmt.Errorf("%w: path traversal", ErrInvalidURL)
	}
	if strings.Contains(rel, "//") {
		return fmt.Errorf("%w: double slash", ErrInvalidURL)
	}

	for _, prefix := range allowedPathPrefixes {
		if strings.HasPrefix(rel, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: path prefix not allowed", ErrInvalidURL)
}
