package schema

// LogEvent carries the full visible log after a change.
type LogEvent struct {
	Entries []LogEntry
	Cursor  int
}

// ControlsEvent carries the mirrored control availability after a change.
type ControlsEvent struct {
	Flags ControlFlags
}

// GameEventType describes a game server availability edge.
type GameEventType string

const (
	// GameEventAvailable indicates the game server started answering.
	GameEventAvailable GameEventType = "available"
	// GameEventUnavailable indicates the game server stopped answering.
	GameEventUnavailable GameEventType = "unavailable"
)

// GameEvent represents a game server availability change.
type GameEvent struct {
	Type GameEventType
	URL  string
}

// PromptKind describes what a host UI prompt expects back.
type PromptKind string

const (
	// PromptMessage is a modal message that only needs dismissal.
	PromptMessage PromptKind = "message"
	// PromptText is a free text input.
	PromptText PromptKind = "text"
	// PromptInteger is an integer input.
	PromptInteger PromptKind = "integer"
)

// PromptEvent represents a host UI prompt being opened or closed.
type PromptEvent struct {
	ID     string
	Kind   PromptKind
	Modal  ModalKind
	Text   string
	Closed bool
}
