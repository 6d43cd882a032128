package core

import "pkt.systems/hamsterbridge/schema"

// LogSink receives the full visible log after every mutation.
type LogSink interface {
	OnLog(event schema.LogEvent)
}

// ControlSink receives the control flags after every recognised change.
type ControlSink interface {
	OnControls(event schema.ControlsEvent)
}

// EventSink receives every host-side state change.
type EventSink interface {
	LogSink
	ControlSink
	OnGame(event schema.GameEvent)
}

type nopSink struct{}

func (nopSink) OnLog(schema.LogEvent)           {}
func (nopSink) OnControls(schema.ControlsEvent) {}
func (nopSink) OnGame(schema.GameEvent)         {}
