package hamsterbridge

import "pkt.systems/hamsterbridge/schema"

type eventFanout struct {
	sinks []EventSink
}

func (f eventFanout) OnLog(event schema.LogEvent) {
	for _, sink := range f.sinks {
		sink.OnLog(event)
	}
}

func (f eventFanout) OnControls(event schema.ControlsEvent) {
	for _, sink := range f.sinks {
		sink.OnControls(event)
	}
}

func (f eventFanout) OnGame(event schema.GameEvent) {
	for _, sink := range f.sinks {
		sink.OnGame(event)
	}
}

func (f eventFanout) OnPrompt(event schema.PromptEvent) {
	for _, sink := range f.sinks {
		sink.OnPrompt(event)
	}
}
