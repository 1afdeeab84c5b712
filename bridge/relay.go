package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/talentwire/atsbridge/internal/sanitize"
)

// subscribeRelay wires the inbound event channels after a successful
// registration. Subscriptions are established once per session.
func (c *Client) subscribeRelay() error {
	c.mu.Lock()
	if c.subscribed {
		c.mu.Unlock()
		return nil
	}
	c.subscribed = true
	c.mu.Unlock()

	for _, name := range []string{EventCustom, EventUpdate} {
		sub, err := c.transport.Subscribe(name, Filter{Origins: c.originPatterns}, c.relayHandler(name))
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", name, err)
		}
		c.mu.Lock()
		c.subs = append(c.subs, sub)
		c.mu.Unlock()
	}

	return nil
}

// relayHandler builds the inbound pipeline for one event channel:
// re-validate the origin even though the transport already filters
// (defense in depth), sanitize the payload, dispatch to listeners.
// Returning an error rejects the message so the transport never
// acknowledges it.
func (c *Client) relayHandler(event string) Handler {
	return func(_ context.Context, msg Inbound) error {
		if !c.origins.Allowed(msg.Origin) {
			c.logger.Warn("rejected inbound message from unrecognized origin",
				slog.String("event", event),
				slog.String("origin", msg.Origin),
			)
			return fmt.Errorf("origin %q not in allow-list", msg.Origin)
		}

		var payload any
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				return fmt.Errorf("decoding %s payload: %w", event, err)
			}
		}

		c.emit(event, sanitize.Value(payload))
		return nil
	}
}
