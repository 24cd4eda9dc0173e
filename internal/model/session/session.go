package session

// Status is the connection state of the voice session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Source identifies who produced a conversation message.
type Source string

const (
	SourceUser Source = "user"
	SourceAI   Source = "ai"
)

// Message is a transcript line delivered by the vendor.
type Message struct {
	Source Source `json:"source"`
	Text   string `json:"message"`
}

// EventType enumerates the callbacks a transport can deliver.
type EventType string

const (
	EventConnect    EventType = "connect"
	EventDisconnect EventType = "disconnect"
	EventError      EventType = "error"
	EventMessage    EventType = "message"
	EventSpeaking   EventType = "speaking"
	EventMetadata   EventType = "metadata"
)

// Event is one vendor callback. For a given session, events arrive as
// connect, then any number of message/speaking/metadata, then exactly one
// disconnect or error.
type Event struct {
	SessionID      string
	Type           EventType
	Err            error
	Message        Message
	Speaking       bool
	ConversationID string
}

// Descriptor is the user-supplied session input.
type Descriptor struct {
	AgentID string  `json:"agentId"`
	Volume  float64 `json:"volume"`
}
