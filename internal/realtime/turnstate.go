package realtime

import (
	"sync"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/ui"
)

// TurnStateMachine tracks what the agent is doing. Only the orchestrator
// mutates it; observers see changes as UI events the moment they happen.
type TurnStateMachine struct {
	mu    sync.Mutex
	state domain.TurnState
	bus   *ui.Bus
}

func NewTurnStateMachine(bus *ui.Bus) *TurnStateMachine {
	return &TurnStateMachine{state: domain.TurnIdle, bus: bus}
}

// Set transitions to the given state. Repeating the current state is a
// no-op and emits nothing.
func (m *TurnStateMachine) Set(s domain.TurnState) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()

	m.bus.Emit(domain.Event{Type: domain.EventTurnState, TurnState: s})
}

// State returns the current turn state.
func (m *TurnStateMachine) State() domain.TurnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
