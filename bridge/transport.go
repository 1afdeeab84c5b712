package bridge

import (
	"context"
	"encoding/json"
	"time"
)

// SendOptions carries per-call constraints for an outbound message.
type SendOptions struct {
	// Timeout bounds the wait for the host's reply. Zero means the
	// transport's default.
	Timeout time.Duration
}

// Inbound is a host-initiated message delivered to a subscription
// handler. Origin is the host's claimed origin; handlers must treat
// Data as untrusted until validated and sanitized.
type Inbound struct {
	Origin string
	Data   json.RawMessage
}

// Handler processes one inbound message. A nil return accepts the
// message (the transport acknowledges receipt to the sender); a non-nil
// return rejects it and no acknowledgement is sent.
type Handler func(ctx context.Context, msg Inbound) error

// Filter restricts a subscription to messages from matching origins.
// An empty filter lets the transport deliver from any origin; the relay
// re-validates regardless.
type Filter struct {
	Origins []string
}

// Subscription is a handle to an active inbound subscription.
type Subscription interface {
	Close() error
}

// Transport is the messaging capability the bridge runs on: send a
// named message to the host and await its reply, or subscribe to named
// host-initiated messages.
type Transport interface {
	// Embedded reports whether the process is actually attached to a
	// host channel. Callers treat a false (or panicking) check as "not
	// running embedded" and fail closed.
	Embedded() bool

	// Send delivers a named message with a JSON-encodable payload and
	// blocks until the host replies, the timeout elapses, or ctx is
	// cancelled.
	Send(ctx context.Context, name string, payload any, opts SendOptions) (json.RawMessage, error)

	// Subscribe registers a handler for a named inbound message.
	Subscribe(name string, filter Filter, h Handler) (Subscription, error)
}
