package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is the bidirectional event stream of one session.
type Transport interface {
	// ReadEvent blocks until the next inbound event arrives.
	ReadEvent() (ServerEvent, error)
	// WriteEvent sends an outbound event. Safe for concurrent use.
	WriteEvent(evt ClientEvent) error
	Close() error
}

// Dialer performs the signaling exchange and opens the event transport.
// The offer/answer mechanics of the underlying media channel are the
// dialer's concern; the orchestrator only sees the resulting stream.
type Dialer interface {
	Dial(ctx context.Context, signalURL, model, credential string) (Transport, error)
}

// AudioSource is the local capture device feeding the session. Acquire
// may prompt the operating system for permission and can fail.
type AudioSource interface {
	Acquire(ctx context.Context) error
	Release() error
}

// NoopAudioSource is used when capture runs out of process (the renderer
// owns the microphone and streams over the same duplex channel).
type NoopAudioSource struct{}

func (NoopAudioSource) Acquire(context.Context) error { return nil }
func (NoopAudioSource) Release() error                { return nil }

// WebSocketDialer opens the event transport over a websocket, passing the
// ephemeral credential as a bearer token and the model as a query
// parameter.
type WebSocketDialer struct{}

func (WebSocketDialer) Dial(ctx context.Context, signalURL, model, credential string) (Transport, error) {
	u, err := url.Parse(signalURL)
	if err != nil {
		return nil, fmt.Errorf("parse signal url: %w", err)
	}
	q := u.Query()
	if model != "" {
		q.Set("model", model)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if credential != "" {
		header.Set("Authorization", "Bearer "+credential)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("signaling exchange: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("signaling exchange: %w", err)
	}
	return newWSTransport(conn), nil
}

// wsTransport carries JSON events over a websocket. Reads are owned by
// the orchestrator's event loop; writes are mutex-serialized because tool
// executors finish on their own goroutines.
type wsTransport struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadEvent() (ServerEvent, error) {
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		return ServerEvent{}, err
	}
	var evt ServerEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		return ServerEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return evt, nil
}

func (t *wsTransport) WriteEvent(evt ClientEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	return t.conn.WriteJSON(evt)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
