// Package bridge implements the client side of the embedded-app host
// channel: a registration handshake with bounded retry, a validated
// gateway for proxied HTTP verbs and UI commands, and a relay that
// delivers host events to local listeners only from verified origins.
package bridge

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/talentwire/atsbridge/internal/launchparams"
	"github.com/talentwire/atsbridge/internal/origin"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTitle = "Embedded Application"
	defaultColor = "#4a89dc"
)

// State is the registration status of a client session.
type State int

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Listener receives a locally emitted event's payload. Relay payloads
// arrive already sanitized.
type Listener func(payload any)

type listenerEntry struct {
	fn  Listener
	key uintptr
	id  uint64
}

// ListenerHandle identifies one registration made with On. Remove
// detaches exactly that registration, even when several listeners
// share a code pointer (closures built from the same function
// literal).
type ListenerHandle struct {
	c     *Client
	event string
	id    uint64
}

// Remove detaches the registration the handle was returned for. It
// reports whether the listener was still registered.
func (h ListenerHandle) Remove() bool {
	if h.c == nil {
		return false
	}
	h.c.listenerMu.Lock()
	defer h.c.listenerMu.Unlock()

	entries := h.c.listeners[h.event]
	for i, e := range entries {
		if e.id == h.id {
			h.c.listeners[h.event] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Options configures a Client. Transport is required for embedded
// operation; a nil Transport produces a client whose calls fail with
// ErrNotEmbedded, mirroring an app loaded outside its host.
type Options struct {
	Transport Transport

	// LaunchURL is the URL the host opened the application with.
	// Credentials are extracted from its query string and fragment,
	// and it is the default `url` in the registration handshake.
	LaunchURL string

	// AllowedOrigins are the origin patterns inbound events are
	// accepted from. Patterns support * wildcards.
	AllowedOrigins []string

	// Title and Color default the registration handshake fields.
	Title string
	Color string

	// OnReady fires once registration succeeds, alongside the "ready"
	// event. OnError fires when registration fails terminally,
	// alongside the "error" event.
	OnReady func()
	OnError func(error)

	Debug  bool
	Logger *slog.Logger
}

// Client is one embedded-app session: registration state, extracted
// credentials, and the local event listener registry. Construct with
// New; a Client is safe for concurrent use.
type Client struct {
	transport Transport
	logger    *slog.Logger
	debug     bool

	launchURL string
	title     string
	color     string
	creds     Credentials

	origins        *origin.Matcher
	originPatterns []string

	onReady func()
	onError func(error)

	mu         sync.Mutex
	state      State
	attempts   int
	subscribed bool
	subs       []Subscription

	reg singleflight.Group

	listenerMu     sync.Mutex
	listeners      map[string][]listenerEntry
	nextListenerID uint64
}

// New builds a session from the given options. It fails only on an
// invalid allowed-origin pattern; a malformed launch URL degrades to
// empty credentials.
func New(opts Options) (*Client, error) {
	matcher, err := origin.NewMatcher(opts.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("building origin allow-list: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		transport:      opts.Transport,
		logger:         logger,
		debug:          opts.Debug,
		launchURL:      opts.LaunchURL,
		title:          opts.Title,
		color:          opts.Color,
		origins:        matcher,
		originPatterns: opts.AllowedOrigins,
		onReady:        opts.OnReady,
		onError:        opts.OnError,
		listeners:      make(map[string][]listenerEntry),
	}

	if opts.LaunchURL != "" {
		creds, err := launchparams.FromURL(opts.LaunchURL)
		if err != nil {
			logger.Debug("launch URL unparseable, no credentials extracted",
				slog.String("error", err.Error()),
			)
		}
		c.creds = Credentials{
			CorporationID:  creds.CorporationID,
			PrivateLabelID: creds.PrivateLabelID,
			UserID:         creds.UserID,
			RestURL:        creds.RestURL,
			RestToken:      creds.RestToken,
		}
	}

	return c, nil
}

// Credentials returns the session credentials extracted at
// construction. The snapshot is immutable.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// State returns the current registration state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// embedded reports whether a host channel is attached. It fails
// closed: a nil transport, a transport that says no, or a transport
// whose check panics all read as "not embedded".
func (c *Client) embedded() (ok bool) {
	if c.transport == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return c.transport.Embedded()
}

// On registers a listener for the named event. Listeners for the same
// event are invoked synchronously in registration order. The returned
// handle removes that exact registration.
func (c *Client) On(event string, fn Listener) ListenerHandle {
	if fn == nil {
		return ListenerHandle{}
	}
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()

	c.nextListenerID++
	c.listeners[event] = append(c.listeners[event], listenerEntry{
		fn:  fn,
		key: reflect.ValueOf(fn).Pointer(),
		id:  c.nextListenerID,
	})
	return ListenerHandle{c: c, event: event, id: c.nextListenerID}
}

// Off removes the first registration of fn for the named event,
// matched by function identity. Distinct closures built from the same
// function literal share a code pointer and are indistinguishable
// here; use the handle returned by On to remove a specific one of
// those. It reports whether a listener was removed. Other listeners
// for the event are unaffected.
func (c *Client) Off(event string, fn Listener) bool {
	if fn == nil {
		return false
	}
	key := reflect.ValueOf(fn).Pointer()

	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()

	entries := c.listeners[event]
	for i, e := range entries {
		if e.key == key {
			c.listeners[event] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// emit invokes the event's listeners in order. No listeners is a
// no-op. The registry lock is not held during callbacks so listeners
// may register or remove listeners themselves.
func (c *Client) emit(event string, payload any) {
	c.listenerMu.Lock()
	entries := make([]listenerEntry, len(c.listeners[event]))
	copy(entries, c.listeners[event])
	c.listenerMu.Unlock()

	for _, e := range entries {
		e.fn(payload)
	}
}

// Close cancels the relay subscriptions. The client is not usable
// afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.subscribed = false
	c.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
