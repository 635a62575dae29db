// Package ui delivers session events to the presentation layer: an
// in-process bus for direct listeners and a websocket broadcaster for
// renderer clients.
package ui

import (
	"sync"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
)

// Bus fans session events out to registered listeners. Emit never blocks
// the session core: listeners run inline and must be fast; anything slow
// (like a network write) belongs behind a buffered channel, which is what
// the Broadcaster does.
type Bus struct {
	mu        sync.RWMutex
	listeners []domain.Listener
	log       *logging.Logger
}

// NewBus creates an empty event bus.
func NewBus(log *logging.Logger) *Bus {
	return &Bus{log: log.Sub("ui")}
}

// Listen registers a listener for all subsequent events.
func (b *Bus) Listen(l domain.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Emit delivers an event to every listener.
func (b *Bus) Emit(evt domain.Event) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	b.log.Debug().Str("event", string(evt.Type)).Msg("emit")
	for _, l := range listeners {
		l(evt)
	}
}
