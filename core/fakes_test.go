package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pkt.systems/hamsterbridge/schema"
)

// chanPoster hands every posted message to a buffered channel.
type chanPoster struct {
	ch  chan schema.Message
	err error
}

func newChanPoster() *chanPoster {
	return &chanPoster{ch: make(chan schema.Message, 64)}
}

func (p *chanPoster) Post(_ context.Context, msg schema.Message) error {
	if p.err != nil {
		return p.err
	}
	p.ch <- msg
	return nil
}

func (p *chanPoster) next(t *testing.T) schema.Message {
	t.Helper()
	select {
	case msg := <-p.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for posted message")
		return nil
	}
}

func (p *chanPoster) nextCommand(t *testing.T, cmd schema.Command) schema.Message {
	t.Helper()
	for {
		msg := p.next(t)
		if msg.Command() == cmd {
			return msg
		}
	}
}

func (p *chanPoster) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-p.ch:
		t.Fatalf("unexpected posted message %+v", msg)
	case <-time.After(wait):
	}
}

type promptCall struct {
	kind   schema.ModalKind
	prompt InputPrompt
	input  bool
}

// fakePrompter blocks each call until the test releases it.
type fakePrompter struct {
	calls    chan promptCall
	dismiss  chan struct{}
	answers  chan promptAnswer
	mu       sync.Mutex
	shown    []string
	showErr  error
	canceled int
}

type promptAnswer struct {
	value string
	ok    bool
}

func newFakePrompter() *fakePrompter {
	return &fakePrompter{
		calls:   make(chan promptCall, 64),
		dismiss: make(chan struct{}),
		answers: make(chan promptAnswer),
	}
}

func (p *fakePrompter) ShowMessage(ctx context.Context, kind schema.ModalKind, text string) error {
	p.mu.Lock()
	p.shown = append(p.shown, text)
	p.mu.Unlock()
	p.calls <- promptCall{kind: kind, prompt: InputPrompt{Text: text}}
	select {
	case <-p.dismiss:
		return p.showErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePrompter) PromptInput(ctx context.Context, prompt InputPrompt) (string, bool, error) {
	p.calls <- promptCall{prompt: prompt, input: true}
	select {
	case answer := <-p.answers:
		return answer.value, answer.ok, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.canceled++
		p.mu.Unlock()
		return "", false, nil
	}
}

func (p *fakePrompter) nextCall(t *testing.T) promptCall {
	t.Helper()
	select {
	case call := <-p.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for prompter call")
		return promptCall{}
	}
}

func (p *fakePrompter) expectNoCall(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case call := <-p.calls:
		t.Fatalf("unexpected prompter call %+v", call)
	case <-time.After(wait):
	}
}

func (p *fakePrompter) release(t *testing.T) {
	t.Helper()
	select {
	case p.dismiss <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out dismissing message")
	}
}

func (p *fakePrompter) answer(t *testing.T, value string, ok bool) {
	t.Helper()
	select {
	case p.answers <- promptAnswer{value: value, ok: ok}:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out answering prompt")
	}
}

func (p *fakePrompter) canceledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canceled
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu       sync.Mutex
	logs     []schema.LogEvent
	controls []schema.ControlsEvent
	games    []schema.GameEvent
}

func (s *recordingSink) OnLog(event schema.LogEvent) {
	s.mu.Lock()
	s.logs = append(s.logs, event)
	s.mu.Unlock()
}

func (s *recordingSink) OnControls(event schema.ControlsEvent) {
	s.mu.Lock()
	s.controls = append(s.controls, event)
	s.mu.Unlock()
}

func (s *recordingSink) OnGame(event schema.GameEvent) {
	s.mu.Lock()
	s.games = append(s.games, event)
	s.mu.Unlock()
}

func (s *recordingSink) logEvents() []schema.LogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.LogEvent(nil), s.logs...)
}

func (s *recordingSink) controlEvents() []schema.ControlsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.ControlsEvent(nil), s.controls...)
}

// fakeFetcher returns a fixed result or error.
type fakeFetcher struct {
	mu     sync.Mutex
	result FetchResult
	err    error
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, method, target string, body *string) (FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := method + " " + target
	if body != nil {
		call += " " + *body
	}
	f.calls = append(f.calls, call)
	return f.result, f.err
}

func (f *fakeFetcher) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var errPostFailed = errors.New("post failed")

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
