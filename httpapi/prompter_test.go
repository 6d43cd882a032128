package httpapi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pkt.systems/hamsterbridge/core"
	"pkt.systems/hamsterbridge/schema"
)

type promptRecorder struct {
	mu     sync.Mutex
	events []schema.PromptEvent
	opened chan schema.PromptEvent
}

func newPromptRecorder() *promptRecorder {
	return &promptRecorder{opened: make(chan schema.PromptEvent, 8)}
}

func (r *promptRecorder) OnPrompt(event schema.PromptEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if !event.Closed {
		r.opened <- event
	}
}

func (r *promptRecorder) closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Closed {
			n++
		}
	}
	return n
}

func (r *promptRecorder) next(t *testing.T) schema.PromptEvent {
	t.Helper()
	select {
	case event := <-r.opened:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for prompt")
	}
	return schema.PromptEvent{}
}

type inputResult struct {
	value string
	ok    bool
	err   error
}

func TestPrompterMessageWaitsForAnswer(t *testing.T) {
	rec := newPromptRecorder()
	p := NewPrompter(rec, nil)
	done := make(chan error, 1)
	go func() { done <- p.ShowMessage(context.Background(), schema.ModalError, "boom") }()

	event := rec.next(t)
	if event.Kind != schema.PromptMessage || event.Modal != schema.ModalError || event.Text != "boom" {
		t.Fatalf("unexpected prompt %+v", event)
	}
	if open := p.Open(); len(open) != 1 || open[0].ID != event.ID {
		t.Fatalf("expected prompt listed as open, got %+v", open)
	}
	select {
	case <-done:
		t.Fatalf("message returned before it was answered")
	case <-time.After(20 * time.Millisecond):
	}
	if err := p.Answer(event.ID, "", true); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("show message: %v", err)
	}
	if len(p.Open()) != 0 {
		t.Fatalf("expected no open prompts")
	}
	if rec.closed() != 1 {
		t.Fatalf("expected one close event")
	}
}

func TestPrompterInputValidation(t *testing.T) {
	rec := newPromptRecorder()
	p := NewPrompter(rec, nil)
	done := make(chan inputResult, 1)
	go func() {
		value, ok, err := p.PromptInput(context.Background(), core.InputPrompt{
			Text: "how many?",
			Kind: schema.PromptInteger,
			Validate: func(v string) string {
				if v == "x" {
					return "not a number"
				}
				return ""
			},
		})
		done <- inputResult{value, ok, err}
	}()
	event := rec.next(t)
	if event.Kind != schema.PromptInteger {
		t.Fatalf("unexpected kind %q", event.Kind)
	}

	err := p.Answer(event.ID, "x", false)
	var rejected *RejectedAnswerError
	if !errors.As(err, &rejected) || rejected.Message != "not a number" {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(p.Open()) != 1 {
		t.Fatalf("rejected prompt should stay open")
	}
	if err := p.Answer(event.ID, "12", false); err != nil {
		t.Fatalf("answer: %v", err)
	}
	res := <-done
	if res.err != nil || !res.ok || res.value != "12" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := p.Answer(event.ID, "13", false); !errors.Is(err, schema.ErrPromptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPrompterDismissSkipsValidation(t *testing.T) {
	rec := newPromptRecorder()
	p := NewPrompter(rec, nil)
	done := make(chan inputResult, 1)
	go func() {
		value, ok, err := p.PromptInput(context.Background(), core.InputPrompt{
			Text:     "name?",
			Validate: func(string) string { return "never valid" },
		})
		done <- inputResult{value, ok, err}
	}()
	event := rec.next(t)
	if event.Kind != schema.PromptText {
		t.Fatalf("expected text prompt by default, got %q", event.Kind)
	}
	if err := p.Answer(event.ID, "ignored", true); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if res := <-done; res.err != nil || res.ok {
		t.Fatalf("expected escaped input, got %+v", res)
	}
}

func TestPrompterContextCancel(t *testing.T) {
	rec := newPromptRecorder()
	p := NewPrompter(rec, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan inputResult, 1)
	go func() {
		value, ok, err := p.PromptInput(ctx, core.InputPrompt{Text: "name?"})
		done <- inputResult{value, ok, err}
	}()
	event := rec.next(t)
	cancel()
	res := <-done
	if !errors.Is(res.err, context.Canceled) || res.ok {
		t.Fatalf("expected cancellation, got %+v", res)
	}
	if err := p.Answer(event.ID, "late", false); !errors.Is(err, schema.ErrPromptNotFound) {
		t.Fatalf("expected not found after cancel, got %v", err)
	}
	if rec.closed() != 1 {
		t.Fatalf("expected close event after cancel")
	}
}
