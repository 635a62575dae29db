package domain

// EventType discriminates UI events emitted by the session core.
type EventType string

const (
	EventConnState       EventType = "connection.state"
	EventTurnState       EventType = "turn.state"
	EventPollPreview     EventType = "poll.preview"
	EventPollResults     EventType = "poll.results"
	EventOpenPreview     EventType = "open.preview"
	EventOpenResults     EventType = "open.results"
	EventDeepDive        EventType = "deepdive.shown"
	EventSummary         EventType = "summary.shown"
	EventImageGenerating EventType = "image.generating"
	EventImageReady      EventType = "image.ready"
	EventImageShown      EventType = "image.shown"
	EventImageError      EventType = "image.error"
	EventSeatAllocation  EventType = "seats.shown"
	EventToolStarted     EventType = "tool.started"
	EventToolEnded       EventType = "tool.ended"
	EventError           EventType = "error"
)

// Summary is a presenter-authored overlay: either a bulleted highlights
// list or free-form content, never both.
type Summary struct {
	Title      string   `json:"title"`
	Highlights []string `json:"highlights,omitempty"`
	Content    string   `json:"content,omitempty"`
}

// Image describes a generated image artifact.
type Image struct {
	Prompt string `json:"prompt"`
	URL    string `json:"url,omitempty"`
}

// SeatShare is one option's share of a fixed seat total.
type SeatShare struct {
	Option  string  `json:"option"`
	Percent float64 `json:"percent"`
	Seats   int     `json:"seats"`
}

// Event is the single notification type flowing from the session core to
// the presentation layer. Exactly the fields relevant to Type are set.
type Event struct {
	Type EventType `json:"type"`

	ConnState ConnState `json:"connState,omitempty"`
	TurnState TurnState `json:"turnState,omitempty"`

	Question  *Question   `json:"question,omitempty"`
	Proposal  *Proposal   `json:"proposal,omitempty"`
	Results   *Results    `json:"results,omitempty"`
	Breakdown *Breakdown  `json:"breakdown,omitempty"`
	Summary   *Summary    `json:"summary,omitempty"`
	Image     *Image      `json:"image,omitempty"`
	Seats     []SeatShare `json:"seats,omitempty"`

	Tool    string `json:"tool,omitempty"`
	Message string `json:"message,omitempty"`
}

// Listener receives UI events as they occur.
type Listener func(Event)
