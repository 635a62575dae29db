package domain

// ConnState is the lifecycle state of the duplex session.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnError        ConnState = "error"
)

// TurnState tracks what the remote agent is doing right now. Transitions
// are driven exclusively by inbound protocol events.
type TurnState string

const (
	TurnIdle      TurnState = "idle"
	TurnListening TurnState = "listening"
	TurnThinking  TurnState = "thinking"
	TurnSpeaking  TurnState = "speaking"
	TurnError     TurnState = "error"
)

// Busy reports whether the agent is mid-turn (thinking or speaking).
func (s TurnState) Busy() bool {
	return s == TurnThinking || s == TurnSpeaking
}
