package core

import (
	"context"
	"sync"

	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// ControlMirror records which simulation controls are currently available.
type ControlMirror struct {
	sink   ControlSink
	logger pslog.Logger

	mu    sync.Mutex
	flags schema.ControlFlags
}

// NewControlMirror returns a mirror with every control inactive. sink may be nil.
func NewControlMirror(sink ControlSink, logger pslog.Logger) *ControlMirror {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &ControlMirror{sink: sink, logger: logger}
}

// SetControlActive updates one control. Unknown names are ignored and
// reported as false.
func (m *ControlMirror) SetControlActive(name string, active bool) bool {
	control, ok := schema.ParseControl(name)
	if !ok {
		m.logger.Debug("unknown control ignored", "control", name)
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = m.flags.With(control, active)
	if m.sink != nil {
		m.sink.OnControls(schema.ControlsEvent{Flags: m.flags})
	}
	return true
}

// IsControlActive reports the last value set for name.
func (m *ControlMirror) IsControlActive(name string) bool {
	control, ok := schema.ParseControl(name)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags.Active(control)
}

// Flags returns the current flags.
func (m *ControlMirror) Flags() schema.ControlFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}
