package core

import (
	"sync"

	"pkt.systems/hamsterbridge/schema"
)

// LogReplay mirrors the simulation log as a sequence plus a cursor. Entries
// after the cursor are a stale tail kept so a redo can re-reveal them.
type LogReplay struct {
	sink LogSink

	mu      sync.Mutex
	entries []schema.LogEntry
	cursor  int
}

// NewLogReplay returns an empty log. sink may be nil.
func NewLogReplay(sink LogSink) *LogReplay {
	return &LogReplay{sink: sink, cursor: -1}
}

// AddLogEntry reveals the next line. entry is stored only when nothing is
// kept past the cursor; otherwise the stored entry at that position is
// re-revealed and entry is discarded.
func (l *LogReplay) AddLogEntry(entry schema.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.cursor + 1
	if next == len(l.entries) {
		l.entries = append(l.entries, entry)
	}
	l.cursor = next
	l.notifyLocked()
}

// RemoveLogEntry hides the last visible line. It returns false when nothing
// was visible.
func (l *LogReplay) RemoveLogEntry() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor < 0 {
		return false
	}
	l.cursor--
	l.notifyLocked()
	return true
}

// Reset clears the sequence. Nothing is published when it was already empty.
func (l *LogReplay) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 && l.cursor == -1 {
		return
	}
	l.entries = nil
	l.cursor = -1
	l.notifyLocked()
}

// VisibleLog returns a copy of the visible prefix.
func (l *LogReplay) VisibleLog() []schema.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visibleLocked()
}

// Cursor returns the index of the last visible entry, -1 when none is.
func (l *LogReplay) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Len returns the stored sequence length including the stale tail.
func (l *LogReplay) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *LogReplay) visibleLocked() []schema.LogEntry {
	out := make([]schema.LogEntry, l.cursor+1)
	copy(out, l.entries[:l.cursor+1])
	return out
}

// notifyLocked runs under l.mu so sinks observe mutations in order.
func (l *LogReplay) notifyLocked() {
	if l.sink == nil {
		return
	}
	l.sink.OnLog(schema.LogEvent{Entries: l.visibleLocked(), Cursor: l.cursor})
}
