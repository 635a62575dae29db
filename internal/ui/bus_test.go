package ui

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestBusDeliversToAllListeners(t *testing.T) {
	bus := NewBus(silentLog())

	var got1, got2 []domain.EventType
	bus.Listen(func(evt domain.Event) { got1 = append(got1, evt.Type) })
	bus.Listen(func(evt domain.Event) { got2 = append(got2, evt.Type) })

	bus.Emit(domain.Event{Type: domain.EventTurnState, TurnState: domain.TurnListening})
	bus.Emit(domain.Event{Type: domain.EventSummary})

	assert.Equal(t, []domain.EventType{domain.EventTurnState, domain.EventSummary}, got1)
	assert.Equal(t, got1, got2)
}

func TestBusNoListeners(t *testing.T) {
	bus := NewBus(silentLog())
	// Must not panic.
	bus.Emit(domain.Event{Type: domain.EventError, Message: "x"})
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestBroadcasterForwardsEvents(t *testing.T) {
	bus := NewBus(silentLog())
	port := freePort(t)
	b := NewBroadcaster(port, nil, bus, silentLog())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	// Wait for the server to come up.
	url := fmt.Sprintf("ws://127.0.0.1:%d/events", port)
	var conn *websocket.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	// Give the register path a moment before emitting.
	time.Sleep(50 * time.Millisecond)
	bus.Emit(domain.Event{Type: domain.EventPollPreview, Proposal: &domain.Proposal{
		Kind: domain.KindPoll,
		Text: "Who wins?",
	}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt domain.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, domain.EventPollPreview, evt.Type)
	require.NotNil(t, evt.Proposal)
	assert.Equal(t, "Who wins?", evt.Proposal.Text)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://stage.example.com"})

	assert.True(t, check(originRequest("")), "no origin header is allowed")
	assert.True(t, check(originRequest("https://stage.example.com")))
	assert.False(t, check(originRequest("https://evil.example.com")))

	anyOrigin := checkOrigin([]string{"*"})
	assert.True(t, anyOrigin(originRequest("https://anything.example.com")))
}

func originRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}
