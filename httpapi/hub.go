package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// Stream event types.
const (
	EventSnapshot    = "snapshot"
	EventLog         = "log"
	EventControls    = "controls"
	EventGame        = "game"
	EventConnection  = "connection"
	EventModal       = "modal"
	EventModalClosed = "modal_closed"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq        uint64               `json:"seq"`
	Type       string               `json:"type"`
	Log        *LogPayload          `json:"log,omitempty"`
	Controls   *schema.ControlFlags `json:"controls,omitempty"`
	Game       *GamePayload         `json:"game,omitempty"`
	Connection *ConnectionPayload   `json:"connection,omitempty"`
	Prompt     *PromptPayload       `json:"prompt,omitempty"`
	Snapshot   *SnapshotPayload     `json:"snapshot,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// LogPayload is the visible log.
type LogPayload struct {
	Entries []schema.LogEntry `json:"entries"`
	Cursor  int               `json:"cursor"`
}

// GamePayload reports game server availability.
type GamePayload struct {
	Available bool   `json:"available"`
	URL       string `json:"url,omitempty"`
}

// ConnectionPayload reports whether a rendering context is attached.
type ConnectionPayload struct {
	Connected bool   `json:"connected"`
	ConnID    string `json:"conn_id,omitempty"`
}

// PromptPayload describes an open host prompt.
type PromptPayload struct {
	ID    string            `json:"id"`
	Kind  schema.PromptKind `json:"kind"`
	Modal schema.ModalKind  `json:"modal,omitempty"`
	Text  string            `json:"text"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	schema.BridgeSnapshot
	Prompts []PromptPayload `json:"prompts"`
}

// Hub keeps a numbered history of stream events and broadcasts them.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	logger      pslog.Logger

	gameUp bool
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		logger:      logger,
	}
}

// OnLog implements core.LogSink.
func (h *Hub) OnLog(event schema.LogEvent) {
	h.logger.Trace("hub log event", "entries", len(event.Entries), "cursor", event.Cursor)
	entries := event.Entries
	if entries == nil {
		entries = []schema.LogEntry{}
	}
	h.publish(StreamEvent{
		Type:      EventLog,
		Log:       &LogPayload{Entries: entries, Cursor: event.Cursor},
		Timestamp: time.Now(),
	})
}

// OnControls implements core.ControlSink.
func (h *Hub) OnControls(event schema.ControlsEvent) {
	h.logger.Trace("hub controls event", "flags", event.Flags)
	flags := event.Flags
	h.publish(StreamEvent{
		Type:      EventControls,
		Controls:  &flags,
		Timestamp: time.Now(),
	})
}

// OnGame implements core.EventSink.
func (h *Hub) OnGame(event schema.GameEvent) {
	up := event.Type == schema.GameEventAvailable
	h.mu.Lock()
	h.gameUp = up
	h.mu.Unlock()
	h.publish(StreamEvent{
		Type:      EventGame,
		Game:      &GamePayload{Available: up, URL: event.URL},
		Timestamp: time.Now(),
	})
}

// OnPrompt publishes a prompt open or close.
func (h *Hub) OnPrompt(event schema.PromptEvent) {
	eventType := EventModal
	if event.Closed {
		eventType = EventModalClosed
	}
	h.publish(StreamEvent{
		Type:      eventType,
		Prompt:    &PromptPayload{ID: event.ID, Kind: event.Kind, Modal: event.Modal, Text: event.Text},
		Timestamp: time.Now(),
	})
}

// OnConnection publishes a rendering context attach or detach.
func (h *Hub) OnConnection(connected bool, connID string) {
	h.publish(StreamEvent{
		Type:       EventConnection,
		Connection: &ConnectionPayload{Connected: connected, ConnID: connID},
		Timestamp:  time.Now(),
	})
}

// GameAvailable reports the last game availability published.
func (h *Hub) GameAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gameUp
}

// Subscribe registers a subscriber.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64, []StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), h.history...)
	seq := h.seq
	h.logger.Info("hub subscribe", "subs", len(h.subs), "history", len(history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			h.logger.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq, history
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	h.logger.Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
