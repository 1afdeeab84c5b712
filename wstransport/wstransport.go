// Package wstransport is the production bridge.Transport over a
// WebSocket channel to the host application. Outbound requests are
// correlated with replies by UUID; host-initiated events are routed to
// subscribers by name with origin filtering and acknowledged on
// accepted delivery.
package wstransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/talentwire/atsbridge/bridge"
	"github.com/talentwire/atsbridge/internal/origin"
	"github.com/tidwall/gjson"
)

const (
	// defaultSendTimeout applies when SendOptions carries no timeout.
	defaultSendTimeout = 10 * time.Second

	// readLimit covers the 1 MiB payload bound plus envelope headroom.
	readLimit = 2 * 1024 * 1024

	// eventBuffer absorbs host-event bursts while a subscriber handler
	// is still running.
	eventBuffer = 64
)

var (
	// ErrTimeout is returned when the host does not reply in time.
	ErrTimeout = errors.New("timed out waiting for host reply")

	// ErrClosed is returned for calls on a closed or never-connected
	// transport.
	ErrClosed = errors.New("transport closed")
)

// wsConn is the subset of *websocket.Conn the transport uses,
// extracted for mocking.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// frame is the wire envelope. Exactly one of the shapes is populated:
// request {id,name,payload}, reply {id,ok,payload|error}, host event
// {id,name,origin,payload}, ack {id,ack}.
type frame struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
	Ack     bool            `json:"ack,omitempty"`
}

// result is what a pending Send receives: the reply frame or the
// connection-level error that killed the wait.
type result struct {
	frame frame
	err   error
}

type subEntry struct {
	id      int
	matcher *origin.Matcher
	handler bridge.Handler
}

// Transport implements bridge.Transport over one WebSocket connection.
//
// A single reader goroutine owns conn.Read. Replies are handed to the
// waiting Send inline; event frames are queued on a buffered channel
// consumed by a separate dispatch goroutine, so a subscriber handler
// can itself call Send without starving the reader of the reply.
// Writers are serialized with a mutex since Send may be called
// concurrently.
type Transport struct {
	conn   wsConn
	logger *slog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan result
	subs      map[string][]subEntry
	nextSubID int

	connected    atomic.Bool
	cancelReader context.CancelFunc
	events       chan []byte
	readerDone   chan struct{}
	dispatchDone chan struct{}
}

var _ bridge.Transport = (*Transport)(nil)

// Dial connects to the host channel and starts the reader. The URL
// must be the host's ws:// or wss:// bridge endpoint.
func Dial(ctx context.Context, hostURL string, logger *slog.Logger) (*Transport, error) {
	conn, _, err := websocket.Dial(ctx, hostURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing host channel: %w", err)
	}
	conn.SetReadLimit(readLimit)

	t := newTransport(conn, logger)
	t.start()
	return t, nil
}

func newTransport(conn wsConn, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		conn:         conn,
		logger:       logger,
		pending:      make(map[string]chan result),
		subs:         make(map[string][]subEntry),
		events:       make(chan []byte, eventBuffer),
		readerDone:   make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
}

// start launches the reader and dispatch goroutines and marks the
// transport live.
func (t *Transport) start() {
	readCtx, cancel := context.WithCancel(context.Background())
	t.cancelReader = cancel
	t.connected.Store(true)
	go t.readLoop(readCtx)
	go t.dispatchLoop(readCtx)
}

// Embedded reports whether the host channel is live.
func (t *Transport) Embedded() bool {
	return t.connected.Load()
}

// Send delivers a named message and blocks for the correlated reply.
func (t *Transport) Send(ctx context.Context, name string, payload any, opts bridge.SendOptions) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, ErrClosed
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling %s payload: %w", name, err)
		}
		raw = data
	}

	id := uuid.NewString()
	ch := make(chan result, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	data, err := json.Marshal(frame{ID: id, Name: name, Payload: raw})
	if err != nil {
		t.dropPending(id)
		return nil, fmt.Errorf("marshalling %s frame: %w", name, err)
	}

	if err := t.write(ctx, data); err != nil {
		t.dropPending(id)
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("awaiting %s reply: %w", name, res.err)
		}
		if res.frame.OK != nil && !*res.frame.OK {
			return nil, fmt.Errorf("host rejected %s: %s", name, res.frame.Error)
		}
		return res.frame.Payload, nil

	case <-timer.C:
		t.dropPending(id)
		return nil, fmt.Errorf("%s: %w", name, ErrTimeout)

	case <-ctx.Done():
		t.dropPending(id)
		return nil, ctx.Err()
	}
}

// Subscribe registers a handler for a named host event. The filter's
// origin patterns are matched before the handler runs; the relay above
// re-validates independently.
func (t *Transport) Subscribe(name string, filter bridge.Filter, h bridge.Handler) (bridge.Subscription, error) {
	var matcher *origin.Matcher
	if len(filter.Origins) > 0 {
		m, err := origin.NewMatcher(filter.Origins)
		if err != nil {
			return nil, fmt.Errorf("compiling subscription filter: %w", err)
		}
		matcher = m
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSubID++
	entry := subEntry{id: t.nextSubID, matcher: matcher, handler: h}
	t.subs[name] = append(t.subs[name], entry)

	return &subscription{t: t, name: name, id: entry.id}, nil
}

// Close tears down the connection and fails every pending Send.
func (t *Transport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}

	if t.cancelReader != nil {
		t.cancelReader()
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "bye")
	t.failPending(ErrClosed)

	select {
	case <-t.readerDone:
	case <-time.After(time.Second):
	}
	select {
	case <-t.dispatchDone:
	case <-time.After(time.Second):
	}
	return err
}

// readLoop owns conn.Read and routes every inbound frame until the
// connection dies or the transport closes. Replies unblock their Send
// inline; events are queued for the dispatch goroutine so a slow or
// reentrant handler never stalls reading.
func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.readerDone)
	defer close(t.events)

	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			t.connected.Store(false)
			t.failPending(err)
			if ctx.Err() == nil {
				t.logger.Warn("host channel read failed",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if typ != websocket.MessageText {
			t.logger.Debug("ignoring non-text frame", slog.Int("bytes", len(data)))
			continue
		}

		// Peek the discriminator fields before a full decode: frames
		// carrying a name are host events, everything else is a reply
		// to a pending request.
		if gjson.GetBytes(data, "name").Exists() {
			select {
			case t.events <- data:
			case <-ctx.Done():
				return
			}
		} else {
			t.deliverReply(data)
		}
	}
}

// dispatchLoop drains queued event frames. It exits when readLoop
// closes the channel.
func (t *Transport) dispatchLoop(ctx context.Context) {
	defer close(t.dispatchDone)

	for data := range t.events {
		t.deliverEvent(ctx, data)
	}
}

// deliverReply hands a reply frame to the Send waiting on its id.
func (t *Transport) deliverReply(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.logger.Debug("unparseable reply frame", slog.Int("bytes", len(data)))
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[f.ID]
	delete(t.pending, f.ID)
	t.mu.Unlock()

	if !ok {
		// Reply raced a timeout or cancellation; the caller is gone.
		t.logger.Debug("reply for unknown id", slog.String("id", f.ID))
		return
	}
	ch <- result{frame: f}
}

// deliverEvent fans a host event out to its subscribers and
// acknowledges receipt when at least one handler accepted it.
func (t *Transport) deliverEvent(ctx context.Context, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.logger.Debug("unparseable event frame", slog.Int("bytes", len(data)))
		return
	}

	t.mu.Lock()
	entries := make([]subEntry, len(t.subs[f.Name]))
	copy(entries, t.subs[f.Name])
	t.mu.Unlock()

	accepted := false
	for _, e := range entries {
		if e.matcher != nil && !e.matcher.Allowed(f.Origin) {
			t.logger.Debug("event origin filtered",
				slog.String("name", f.Name),
				slog.String("origin", f.Origin),
			)
			continue
		}
		if err := e.handler(ctx, bridge.Inbound{Origin: f.Origin, Data: f.Payload}); err != nil {
			t.logger.Debug("event handler rejected message",
				slog.String("name", f.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		accepted = true
	}

	if accepted && f.ID != "" {
		ack, err := json.Marshal(frame{ID: f.ID, Ack: true})
		if err == nil {
			if err := t.write(ctx, ack); err != nil {
				t.logger.Debug("writing ack failed", slog.String("error", err.Error()))
			}
		}
	}
}

// write serializes access to the connection's writer.
func (t *Transport) write(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *Transport) dropPending(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// failPending delivers err to every in-flight Send and clears the map.
func (t *Transport) failPending(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]chan result)
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: err}
	}
}

// subscription unregisters its handler on Close.
type subscription struct {
	t    *Transport
	name string
	id   int
}

func (s *subscription) Close() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	entries := s.t.subs[s.name]
	for i, e := range entries {
		if e.id == s.id {
			s.t.subs[s.name] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}
