// Package realtime owns the duplex event-stream session with the
// conversational agent: connection lifecycle, the turn-taking state
// machine, and interception of tool calls.
package realtime

import "encoding/json"

// Inbound event types. Anything not listed here is ignored by the event
// loop.
const (
	EventSessionCreated    = "session.created"
	EventSessionUpdated    = "session.updated"
	EventSpeechStarted     = "input_audio_buffer.speech_started"
	EventSpeechStopped     = "input_audio_buffer.speech_stopped"
	EventResponseCreated   = "response.created"
	EventAudioDelta        = "response.audio.delta"
	EventTranscriptDelta   = "response.audio_transcript.delta"
	EventResponseCancelled = "response.cancelled"
	EventOutputItemAdded   = "response.output_item.added"
	EventFunctionArgsDone  = "response.function_call_arguments.done"
	EventResponseDone      = "response.done"
	EventErrorReceived     = "error"
)

// Outbound event types.
const (
	EventItemCreate     = "conversation.item.create"
	EventResponseCreate = "response.create"
)

// Item type discriminators used inside response output lists and created
// conversation items.
const (
	ItemFunctionCall       = "function_call"
	ItemFunctionCallOutput = "function_call_output"
	ItemMessage            = "message"
)

// ServerEvent is the inbound envelope, discriminated on Type. The agent
// service sets only the fields relevant to each event kind.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`

	// response.created / response.done
	Response *Response `json:"response,omitempty"`

	// response.output_item.added
	Item *Item `json:"item,omitempty"`

	// response.function_call_arguments.done
	ItemID     string `json:"item_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Arguments  string `json:"arguments,omitempty"`

	// delta events
	Delta string `json:"delta,omitempty"`

	// error
	Error *EventError `json:"error,omitempty"`
}

// Response is the agent's turn object carried by response lifecycle
// events.
type Response struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Output []Item `json:"output,omitempty"`
}

// Item is one conversation item: a message, a function call, or a
// function call output.
type Item struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Status    string        `json:"status,omitempty"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
}

// ContentPart is one piece of a message item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// EventError is the error detail embedded in an inbound "error" event.
type EventError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// HasFunctionCalls reports whether a completed response produced any tool
// calls, which defers clearing of the in-flight id to the tool-result
// path.
func (r *Response) HasFunctionCalls() bool {
	if r == nil {
		return false
	}
	for _, item := range r.Output {
		if item.Type == ItemFunctionCall {
			return true
		}
	}
	return false
}

// ClientEvent is the outbound envelope.
type ClientEvent struct {
	Type     string           `json:"type"`
	Item     *Item            `json:"item,omitempty"`
	Response *ResponseOptions `json:"response,omitempty"`
}

// ResponseOptions parametrizes an outbound response.create.
type ResponseOptions struct {
	Instructions string `json:"instructions,omitempty"`
}

// NewToolOutput builds the conversation item answering a tool call.
// output must already be serialized JSON.
func NewToolOutput(callID string, output json.RawMessage) ClientEvent {
	return ClientEvent{
		Type: EventItemCreate,
		Item: &Item{
			Type:   ItemFunctionCallOutput,
			CallID: callID,
			Output: string(output),
		},
	}
}

// NewSystemMessage builds a system-authored transcript message. It does
// not by itself request a turn.
func NewSystemMessage(text string) ClientEvent {
	return ClientEvent{
		Type: EventItemCreate,
		Item: &Item{
			Type: ItemMessage,
			Role: "system",
			Content: []ContentPart{
				{Type: "input_text", Text: text},
			},
		},
	}
}

// NewResponseCreate requests the next agent turn, optionally biased by
// custom instructions.
func NewResponseCreate(instructions string) ClientEvent {
	evt := ClientEvent{Type: EventResponseCreate}
	if instructions != "" {
		evt.Response = &ResponseOptions{Instructions: instructions}
	}
	return evt
}
