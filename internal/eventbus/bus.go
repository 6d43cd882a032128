package eventbus

import (
	"context"
	"sync"

	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventLog carries the visible log after a change.
	EventLog EventType = "log"
	// EventControls carries mirrored control flags.
	EventControls EventType = "controls"
	// EventGame carries game server availability edges.
	EventGame EventType = "game"
	// EventPrompt carries host prompt open/close updates.
	EventPrompt EventType = "prompt"
)

// Event represents a host-side state change.
type Event struct {
	Type     EventType
	Log      schema.LogEvent
	Controls schema.ControlsEvent
	Game     schema.GameEvent
	Prompt   schema.PromptEvent
}

type subscriber struct {
	ch    chan Event
	types map[EventType]struct{}
}

func (s *subscriber) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus fans events out to in-process subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]*subscriber
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]*subscriber),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the given event types (all when none
// are given) and returns a channel + cancel.
func (b *Bus) Subscribe(types ...EventType) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	sub := &subscriber{ch: make(chan Event, b.depth), types: make(map[EventType]struct{}, len(types))}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}
	b.mu.Lock()
	b.subs[sub.ch] = sub
	count := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count, "types", types)
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub.ch)
			b.mu.Unlock()
			close(sub.ch)
			b.log.Debug("eventbus unsubscribe")
		})
	}
}

// OnLog publishes a log event.
func (b *Bus) OnLog(event schema.LogEvent) {
	b.publish(Event{Type: EventLog, Log: event})
}

// OnControls publishes a controls event.
func (b *Bus) OnControls(event schema.ControlsEvent) {
	b.publish(Event{Type: EventControls, Controls: event})
}

// OnGame publishes a game availability event.
func (b *Bus) OnGame(event schema.GameEvent) {
	b.publish(Event{Type: EventGame, Game: event})
}

// OnPrompt publishes a prompt event.
func (b *Bus) OnPrompt(event schema.PromptEvent) {
	b.publish(Event{Type: EventPrompt, Prompt: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
