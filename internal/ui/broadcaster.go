package ui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
)

// rendererClient is one connected presentation client.
type rendererClient struct {
	id     string
	socket *websocket.Conn
	send   chan domain.Event

	mu     sync.Mutex
	closed bool
}

// trySend queues an event without blocking. Returns false when the
// client is closed or its buffer is full.
func (c *rendererClient) trySend(evt domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

func (c *rendererClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.socket.Close()
}

// Broadcaster serves the renderer-facing websocket endpoint and forwards
// every bus event as a JSON frame to all connected clients.
type Broadcaster struct {
	port     int
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*rendererClient

	httpServer *http.Server
}

// NewBroadcaster creates a broadcaster and subscribes it to the bus.
func NewBroadcaster(port int, allowedOrigins []string, bus *Bus, log *logging.Logger) *Broadcaster {
	b := &Broadcaster{
		port:    port,
		log:     log.Sub("broadcast"),
		clients: make(map[string]*rendererClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
	bus.Listen(b.broadcast)
	return b
}

// checkOrigin validates websocket Origin headers. With no configured
// origins only same-origin or non-browser clients are allowed.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Start listens for renderer connections until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", b.handleWebSocket)

	addr := fmt.Sprintf("127.0.0.1:%d", b.port)
	b.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	b.log.Info().Str("addr", ln.Addr().String()).Msg("ui broadcaster ready")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		b.closeAll()
		b.httpServer.Shutdown(shutdownCtx)
	}()

	if err := b.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the listen address, or empty string if not started.
func (b *Broadcaster) Addr() string {
	if b.httpServer != nil {
		return b.httpServer.Addr
	}
	return ""
}

func (b *Broadcaster) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &rendererClient{
		id:     uuid.New().String(),
		socket: conn,
		send:   make(chan domain.Event, 64),
	}

	b.mu.Lock()
	b.clients[client.id] = client
	b.mu.Unlock()
	b.log.Info().Str("client", client.id).Msg("renderer connected")

	go b.writePump(client)

	// Read loop exists only to detect disconnects; renderers never send.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	b.mu.Lock()
	delete(b.clients, client.id)
	b.mu.Unlock()
	client.close()
	b.log.Info().Str("client", client.id).Msg("renderer disconnected")
}

func (b *Broadcaster) writePump(c *rendererClient) {
	for evt := range c.send {
		if err := c.socket.WriteJSON(evt); err != nil {
			b.log.Warn().Err(err).Str("client", c.id).Msg("write failed")
			return
		}
	}
}

// broadcast queues the event for every client, dropping it for clients
// whose buffers are full rather than stalling the session core.
func (b *Broadcaster) broadcast(evt domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		if !c.trySend(evt) {
			b.log.Warn().Str("client", c.id).Str("event", string(evt.Type)).Msg("slow renderer, event dropped")
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		c.close()
		delete(b.clients, id)
	}
}
