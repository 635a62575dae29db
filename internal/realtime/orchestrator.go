package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/pulsestage/internal/config"
	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
	"github.com/soyeahso/pulsestage/internal/ui"
)

var (
	ErrTransportClosed     = errors.New("transport closed")
	ErrAlreadyConnected    = errors.New("session already connected")
	ErrNotificationDropped = errors.New("notification dropped: agent stayed busy")
)

// Dispatcher executes an intercepted tool call. It always produces a
// serialized payload; executor failures come back as {"error": ...}
// payloads, never as a Go error, so the agent can recover
// conversationally.
type Dispatcher interface {
	Execute(ctx context.Context, name, callID, rawArgs string) json.RawMessage
}

// pendingCall is a tool invocation whose arguments are still streaming.
type pendingCall struct {
	name   string
	callID string
}

// Orchestrator owns one duplex session with the conversational agent: it
// runs the inbound event loop, drives the turn state machine, intercepts
// tool calls, and enforces that at most one agent turn is ever in flight.
type Orchestrator struct {
	cfg        config.RealtimeConfig
	tokens     TokenSource
	dialer     Dialer
	audio      AudioSource
	dispatcher Dispatcher
	turn       *TurnStateMachine
	bus        *ui.Bus
	log        *logging.Logger

	// Delay between submitting a tool output and asking for the next
	// turn; the agent needs a beat to ingest the output.
	turnDelay time.Duration
	// Delay before draining the turn queue after a completed response.
	drainDelay time.Duration
	// Polling cadence and cap for SendNotificationAndRespond.
	notifyPoll time.Duration
	notifyMax  time.Duration

	mu        sync.Mutex
	connState domain.ConnState
	transport Transport
	sessionID string
	// inFlightID is the id of the response currently being generated;
	// awaiting covers the window between our response.create and the
	// remote's response.created acknowledgement.
	inFlightID       string
	awaiting         bool
	pending          map[string]pendingCall
	turnQueue        []string
	nextInstructions string
	closing          bool
}

func NewOrchestrator(cfg config.RealtimeConfig, tokens TokenSource, dialer Dialer, audio AudioSource, dispatcher Dispatcher, bus *ui.Bus, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		tokens:     tokens,
		dialer:     dialer,
		audio:      audio,
		dispatcher: dispatcher,
		turn:       NewTurnStateMachine(bus),
		bus:        bus,
		log:        log.Sub("realtime"),
		turnDelay:  500 * time.Millisecond,
		drainDelay: 250 * time.Millisecond,
		notifyPoll: 250 * time.Millisecond,
		notifyMax:  10 * time.Second,
		connState:  domain.ConnDisconnected,
	}
}

// SetDispatcher wires the tool dispatcher after construction. The
// dispatcher needs the orchestrator for notifications, so one of the two
// has to be attached late.
func (o *Orchestrator) SetDispatcher(d Dispatcher) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatcher = d
}

// Connect acquires a session credential, the local audio source, and the
// event transport, in that order. Resources acquired before a failure are
// released, the connection state moves to error, and a single
// human-readable cause is surfaced.
func (o *Orchestrator) Connect(ctx context.Context, sessionContext string) error {
	o.mu.Lock()
	if o.connState == domain.ConnConnected || o.connState == domain.ConnConnecting {
		o.mu.Unlock()
		return ErrAlreadyConnected
	}
	o.connState = domain.ConnConnecting
	o.mu.Unlock()
	o.emitConnState(domain.ConnConnecting)

	tok, err := o.tokens.Acquire(ctx, sessionContext)
	if err != nil {
		return o.failConnect("acquire session token", err, false)
	}
	if err := o.audio.Acquire(ctx); err != nil {
		return o.failConnect("acquire audio source", err, false)
	}
	tr, err := o.dialer.Dial(ctx, o.cfg.SignalURL, o.cfg.Model, tok.Credential)
	if err != nil {
		return o.failConnect("open event transport", err, true)
	}

	o.mu.Lock()
	o.transport = tr
	o.sessionID = tok.SessionID
	o.connState = domain.ConnConnected
	o.inFlightID = ""
	o.awaiting = false
	o.pending = make(map[string]pendingCall)
	o.turnQueue = nil
	o.nextInstructions = ""
	o.closing = false
	o.mu.Unlock()

	o.emitConnState(domain.ConnConnected)
	o.turn.Set(domain.TurnListening)
	o.log.Info().Str("sessionId", tok.SessionID).Msg("session connected")

	go o.readLoop(tr)
	return nil
}

func (o *Orchestrator) failConnect(stage string, cause error, releaseAudio bool) error {
	if releaseAudio {
		if err := o.audio.Release(); err != nil {
			o.log.Warn().Err(err).Msg("audio release failed")
		}
	}
	o.mu.Lock()
	o.connState = domain.ConnError
	o.mu.Unlock()

	msg := fmt.Sprintf("%s: %v", stage, cause)
	o.emitConnState(domain.ConnError)
	o.bus.Emit(domain.Event{Type: domain.EventError, Message: msg})
	o.log.Error().Err(cause).Str("stage", stage).Msg("connect failed")
	return fmt.Errorf("%s: %w", stage, cause)
}

// Disconnect tears the session down. Idempotent; safe before ever
// connecting.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	tr := o.transport
	wasDisconnected := o.connState == domain.ConnDisconnected
	o.transport = nil
	o.closing = true
	o.connState = domain.ConnDisconnected
	o.sessionID = ""
	o.inFlightID = ""
	o.awaiting = false
	o.pending = nil
	o.turnQueue = nil
	o.nextInstructions = ""
	o.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	if err := o.audio.Release(); err != nil {
		o.log.Warn().Err(err).Msg("audio release failed")
	}
	o.turn.Set(domain.TurnIdle)
	if !wasDisconnected {
		o.emitConnState(domain.ConnDisconnected)
		o.log.Info().Msg("session disconnected")
	}
}

// ConnState returns the connection lifecycle state.
func (o *Orchestrator) ConnState() domain.ConnState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connState
}

// SessionID returns the identifier issued by the token service, empty
// when disconnected.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// TurnState returns the agent's current turn state.
func (o *Orchestrator) TurnState() domain.TurnState {
	return o.turn.State()
}

func (o *Orchestrator) emitConnState(s domain.ConnState) {
	o.bus.Emit(domain.Event{Type: domain.EventConnState, ConnState: s})
}

func (o *Orchestrator) readLoop(tr Transport) {
	for {
		evt, err := tr.ReadEvent()
		if err != nil {
			o.mu.Lock()
			closing := o.closing
			o.mu.Unlock()
			if closing {
				return
			}
			o.mu.Lock()
			o.connState = domain.ConnError
			o.transport = nil
			o.mu.Unlock()
			o.emitConnState(domain.ConnError)
			o.bus.Emit(domain.Event{Type: domain.EventError, Message: "event stream closed: " + err.Error()})
			o.log.Warn().Err(err).Msg("event stream closed")
			return
		}
		o.handleEvent(evt)
	}
}

// handleEvent dispatches one inbound event. Events are fully handled in
// arrival order; only tool execution leaves this goroutine.
func (o *Orchestrator) handleEvent(evt ServerEvent) {
	switch evt.Type {
	case EventSessionCreated, EventSessionUpdated, EventSpeechStarted:
		o.turn.Set(domain.TurnListening)

	case EventSpeechStopped:
		o.turn.Set(domain.TurnThinking)

	case EventResponseCreated:
		var id string
		if evt.Response != nil {
			id = evt.Response.ID
		}
		o.mu.Lock()
		if o.inFlightID != "" && o.inFlightID != id {
			o.log.Warn().Str("inFlight", o.inFlightID).Str("replacement", id).
				Msg("response created while another is in flight")
		}
		o.inFlightID = id
		o.awaiting = false
		o.mu.Unlock()
		o.turn.Set(domain.TurnThinking)

	case EventAudioDelta, EventTranscriptDelta:
		o.turn.Set(domain.TurnSpeaking)

	case EventResponseCancelled:
		o.mu.Lock()
		o.inFlightID = ""
		o.awaiting = false
		o.pending = make(map[string]pendingCall)
		o.mu.Unlock()
		o.turn.Set(domain.TurnListening)
		o.log.Debug().Msg("response cancelled by remote")

	case EventOutputItemAdded:
		if evt.Item == nil || evt.Item.Type != ItemFunctionCall {
			return
		}
		o.mu.Lock()
		if o.pending == nil {
			o.pending = make(map[string]pendingCall)
		}
		o.pending[evt.Item.ID] = pendingCall{name: evt.Item.Name, callID: evt.Item.CallID}
		o.mu.Unlock()
		o.bus.Emit(domain.Event{Type: domain.EventToolStarted, Tool: evt.Item.Name})
		o.turn.Set(domain.TurnThinking)

	case EventFunctionArgsDone:
		o.mu.Lock()
		call, ok := o.pending[evt.ItemID]
		if ok {
			delete(o.pending, evt.ItemID)
		}
		o.mu.Unlock()
		if !ok {
			// The remote side can complete calls we never saw start.
			o.log.Debug().Str("itemId", evt.ItemID).Msg("arguments for unknown tool call ignored")
			return
		}
		callID := call.callID
		if evt.CallID != "" {
			callID = evt.CallID
		}
		go o.runTool(call.name, callID, evt.Arguments)

	case EventResponseDone:
		if evt.Response.HasFunctionCalls() {
			// Tool outputs must go out first; the tool-result path
			// clears the in-flight id.
			return
		}
		o.mu.Lock()
		o.inFlightID = ""
		o.awaiting = false
		o.mu.Unlock()
		o.turn.Set(domain.TurnListening)
		time.AfterFunc(o.drainDelay, o.drainTurnQueue)

	case EventErrorReceived:
		msg := "agent error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		o.log.Warn().Str("detail", msg).Msg("agent reported an error")

	default:
		o.log.Debug().Str("type", evt.Type).Msg("ignoring event")
	}
}

func (o *Orchestrator) runTool(name, callID, rawArgs string) {
	o.mu.Lock()
	d := o.dispatcher
	o.mu.Unlock()
	if d == nil {
		o.log.Error().Str("tool", name).Msg("no dispatcher wired")
		return
	}

	payload := d.Execute(context.Background(), name, callID, rawArgs)
	o.bus.Emit(domain.Event{Type: domain.EventToolEnded, Tool: name})
	if err := o.SendToolResult(callID, payload); err != nil {
		o.log.Warn().Err(err).Str("tool", name).Msg("tool result not delivered")
	}
}

// RequestTurn asks the agent for a new turn. With a response already in
// flight the request queues and drains strictly FIFO, one send per
// completed response.
func (o *Orchestrator) RequestTurn() {
	o.enqueueTurn("")
}

// SetNextTurnInstructions biases the next requested turn with custom
// instructions, consumed by the first response.create that goes out.
func (o *Orchestrator) SetNextTurnInstructions(instructions string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextInstructions = instructions
}

func (o *Orchestrator) enqueueTurn(instructions string) {
	o.mu.Lock()
	if o.transport == nil {
		o.mu.Unlock()
		o.log.Debug().Msg("turn request ignored while disconnected")
		return
	}
	o.turnQueue = append(o.turnQueue, instructions)
	o.mu.Unlock()
	o.drainTurnQueue()
}

// drainTurnQueue sends the head of the queue if nothing is in flight.
// Called again after each completed response, so queued requests go out
// one per completion.
func (o *Orchestrator) drainTurnQueue() {
	o.mu.Lock()
	if len(o.turnQueue) == 0 || o.transport == nil || o.busyLocked() {
		o.mu.Unlock()
		return
	}
	instructions := o.turnQueue[0]
	o.turnQueue = o.turnQueue[1:]
	if instructions == "" && o.nextInstructions != "" {
		instructions = o.nextInstructions
		o.nextInstructions = ""
	}
	o.awaiting = true
	tr := o.transport
	o.mu.Unlock()

	if err := tr.WriteEvent(NewResponseCreate(instructions)); err != nil {
		o.mu.Lock()
		o.awaiting = false
		o.mu.Unlock()
		o.log.Warn().Err(err).Msg("turn request failed")
	}
}

func (o *Orchestrator) busyLocked() bool {
	return o.inFlightID != "" || o.awaiting
}

// SendToolResult writes a tool output onto the channel, clears the
// in-flight response id, and schedules the next turn request after a
// short delay.
func (o *Orchestrator) SendToolResult(callID string, payload json.RawMessage) error {
	o.mu.Lock()
	tr := o.transport
	o.inFlightID = ""
	o.awaiting = false
	o.mu.Unlock()
	if tr == nil {
		return ErrTransportClosed
	}
	if err := tr.WriteEvent(NewToolOutput(callID, payload)); err != nil {
		return err
	}
	time.AfterFunc(o.turnDelay, o.RequestTurn)
	return nil
}

// SendSilentNotification puts a system message into the transcript
// without requesting a turn. The agent only acts on it when the human
// next brings it up.
func (o *Orchestrator) SendSilentNotification(text string) error {
	o.mu.Lock()
	tr := o.transport
	o.mu.Unlock()
	if tr == nil {
		return ErrTransportClosed
	}
	return tr.WriteEvent(NewSystemMessage(text))
}

// SendNotificationAndRespond injects a system message and requests a
// turn, waiting first for the agent to go idle. The wait is bounded; on
// timeout the message is dropped rather than delivered arbitrarily late.
func (o *Orchestrator) SendNotificationAndRespond(ctx context.Context, text string) error {
	deadline := time.Now().Add(o.notifyMax)
	for {
		o.mu.Lock()
		tr := o.transport
		busy := o.busyLocked()
		o.mu.Unlock()
		if tr == nil {
			return ErrTransportClosed
		}
		if !busy && !o.turn.State().Busy() {
			break
		}
		if time.Now().After(deadline) {
			o.log.Warn().Msg("agent stayed busy, notification dropped")
			return ErrNotificationDropped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.notifyPoll):
		}
	}

	if err := o.SendSilentNotification(text); err != nil {
		return err
	}
	o.RequestTurn()
	return nil
}
