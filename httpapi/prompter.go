package httpapi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/hamsterbridge/core"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// PromptSink receives prompt open and close events.
type PromptSink interface {
	OnPrompt(event schema.PromptEvent)
}

// RejectedAnswerError is returned when an input answer fails validation. The
// prompt stays open.
type RejectedAnswerError struct {
	Message string
}

func (e *RejectedAnswerError) Error() string {
	return e.Message
}

// Prompter shows host modals and input boxes to web clients. Each prompt is
// published on the stream and settled by Answer.
type Prompter struct {
	sink   PromptSink
	logger pslog.Logger

	mu   sync.Mutex
	open map[string]*openPrompt
}

type openPrompt struct {
	event    schema.PromptEvent
	opened   time.Time
	validate func(string) string
	reply    chan promptReply
}

type promptReply struct {
	value string
	ok    bool
}

var _ core.Prompter = (*Prompter)(nil)

// NewPrompter constructs a prompter publishing to sink.
func NewPrompter(sink PromptSink, logger pslog.Logger) *Prompter {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Prompter{sink: sink, logger: logger, open: make(map[string]*openPrompt)}
}

// ShowMessage implements core.Prompter.
func (p *Prompter) ShowMessage(ctx context.Context, kind schema.ModalKind, text string) error {
	_, _, err := p.wait(ctx, schema.PromptEvent{Kind: schema.PromptMessage, Modal: kind, Text: text}, nil)
	return err
}

// PromptInput implements core.Prompter.
func (p *Prompter) PromptInput(ctx context.Context, prompt core.InputPrompt) (string, bool, error) {
	kind := prompt.Kind
	if kind == "" {
		kind = schema.PromptText
	}
	return p.wait(ctx, schema.PromptEvent{Kind: kind, Text: prompt.Text}, prompt.Validate)
}

func (p *Prompter) wait(ctx context.Context, event schema.PromptEvent, validate func(string) string) (string, bool, error) {
	event.ID = uuid.NewString()
	entry := &openPrompt{
		event:    event,
		opened:   time.Now(),
		validate: validate,
		reply:    make(chan promptReply, 1),
	}
	p.mu.Lock()
	p.open[event.ID] = entry
	p.mu.Unlock()
	p.logger.Debug("prompt opened", "prompt", event.ID, "kind", event.Kind, "modal", event.Modal)
	p.publish(event)

	defer func() {
		p.mu.Lock()
		delete(p.open, event.ID)
		p.mu.Unlock()
		closed := event
		closed.Closed = true
		p.publish(closed)
	}()

	select {
	case reply := <-entry.reply:
		return reply.value, reply.ok, nil
	case <-ctx.Done():
		p.logger.Debug("prompt cancelled", "prompt", event.ID, "err", ctx.Err())
		return "", false, ctx.Err()
	}
}

// Answer settles an open prompt. dismiss closes it without a value, which an
// input box treats as escape. A rejected input answer leaves the prompt open.
func (p *Prompter) Answer(id string, value string, dismiss bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.open[id]
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrPromptNotFound, id)
	}
	if !dismiss && entry.validate != nil {
		if msg := entry.validate(value); msg != "" {
			return &RejectedAnswerError{Message: msg}
		}
	}
	delete(p.open, id)
	entry.reply <- promptReply{value: value, ok: !dismiss}
	p.logger.Debug("prompt answered", "prompt", id, "dismissed", dismiss)
	return nil
}

// Open lists open prompts, oldest first.
func (p *Prompter) Open() []PromptPayload {
	p.mu.Lock()
	entries := make([]*openPrompt, 0, len(p.open))
	for _, entry := range p.open {
		entries = append(entries, entry)
	}
	p.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].opened.Before(entries[j].opened) })
	out := make([]PromptPayload, 0, len(entries))
	for _, entry := range entries {
		out = append(out, PromptPayload{
			ID:    entry.event.ID,
			Kind:  entry.event.Kind,
			Modal: entry.event.Modal,
			Text:  entry.event.Text,
		})
	}
	return out
}

func (p *Prompter) publish(event schema.PromptEvent) {
	if p.sink != nil {
		p.sink.OnPrompt(event)
	}
}
