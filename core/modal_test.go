package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/hamsterbridge/schema"
)

func TestModalQueueShowsInFIFOOrder(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	first := q.Enqueue(schema.ModalError, "A")
	second := q.Enqueue(schema.ModalStatus, "B")

	call := prompter.nextCall(t)
	if call.prompt.Text != "A" || call.kind != schema.ModalError {
		t.Fatalf("expected A first, got %+v", call)
	}
	prompter.expectNoCall(t, 30*time.Millisecond)
	prompter.release(t)
	<-first

	call = prompter.nextCall(t)
	if call.prompt.Text != "B" || call.kind != schema.ModalStatus {
		t.Fatalf("expected B second, got %+v", call)
	}
	prompter.release(t)
	<-second
	waitFor(t, "queue idle", func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return !q.draining
	})
}

func TestModalQueueShowErrorWaitsForDismissal(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	errs := make(chan error, 1)
	go func() { errs <- q.ShowError(context.Background(), "boom") }()
	prompter.nextCall(t)
	select {
	case err := <-errs:
		t.Fatalf("returned before dismissal: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	prompter.release(t)
	if err := <-errs; err != nil {
		t.Fatalf("show error: %v", err)
	}
}

func TestModalQueueCancelAllDropsQueued(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	shown := q.Enqueue(schema.ModalError, "A")
	dropped := q.Enqueue(schema.ModalError, "B")
	prompter.nextCall(t)

	q.CancelAll()
	if q.Queued() != 0 {
		t.Fatalf("expected empty queue after cancel, got %d", q.Queued())
	}
	prompter.release(t)
	<-shown
	prompter.expectNoCall(t, 30*time.Millisecond)
	select {
	case <-dropped:
		t.Fatalf("dropped message must not report dismissal")
	default:
	}

	// Queue keeps working after a cancel.
	next := q.Enqueue(schema.ModalStatus, "C")
	if call := prompter.nextCall(t); call.prompt.Text != "C" {
		t.Fatalf("expected C, got %+v", call)
	}
	prompter.release(t)
	<-next
}

func TestModalQueueConcurrentShowErrorCallers(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make([]chan error, 3)
	for i := range results {
		results[i] = make(chan error, 1)
		go func(text string, out chan<- error) {
			out <- q.ShowError(ctx, text)
		}(string(rune('A'+i)), results[i])
		if i == 0 {
			if call := prompter.nextCall(t); call.prompt.Text != "A" {
				t.Fatalf("expected A on screen, got %+v", call)
			}
			continue
		}
		want := i
		waitFor(t, "caller queued", func() bool { return q.Queued() == want })
	}

	q.CancelAll()
	prompter.release(t)
	if err := <-results[0]; err != nil {
		t.Fatalf("shown error: %v", err)
	}
	prompter.expectNoCall(t, 30*time.Millisecond)
	for i := 1; i < 3; i++ {
		select {
		case err := <-results[i]:
			t.Fatalf("dropped caller %d returned %v", i, err)
		default:
		}
	}
	cancel()
	for i := 1; i < 3; i++ {
		if err := <-results[i]; !errors.Is(err, context.Canceled) {
			t.Fatalf("dropped caller %d: expected cancel, got %v", i, err)
		}
	}
}

func TestModalQueueFIFOAcrossCallers(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	done := make(chan error, 3)
	q.Enqueue(schema.ModalStatus, "blocking")
	prompter.nextCall(t)
	for i, text := range []string{"A", "B", "C"} {
		go func(text string) { done <- q.ShowError(context.Background(), text) }(text)
		want := i + 1
		waitFor(t, "caller queued", func() bool { return q.Queued() == want })
	}
	prompter.release(t)
	for _, want := range []string{"A", "B", "C"} {
		if call := prompter.nextCall(t); call.prompt.Text != want {
			t.Fatalf("expected %s, got %+v", want, call)
		}
		prompter.release(t)
		if err := <-done; err != nil {
			t.Fatalf("show error: %v", err)
		}
	}
}

func TestModalQueueShowStatusHonoursContext(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	q.Enqueue(schema.ModalError, "blocking")
	prompter.nextCall(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.ShowStatus(ctx, "later"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	prompter.release(t)
	prompter.nextCall(t)
	prompter.release(t)
}

func TestModalQueueInputIntValidates(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	type result struct {
		n  int64
		ok bool
	}
	out := make(chan result, 1)
	go func() {
		n, ok := q.InputInt(context.Background(), "how many?")
		out <- result{n, ok}
	}()
	call := prompter.nextCall(t)
	if call.prompt.Validate == nil {
		t.Fatalf("expected integer validator")
	}
	if msg := call.prompt.Validate("abc"); msg != InvalidIntegerMessage {
		t.Fatalf("expected validator message, got %q", msg)
	}
	if msg := call.prompt.Validate("12"); msg != "" {
		t.Fatalf("expected 12 to validate, got %q", msg)
	}
	prompter.answer(t, "12", true)
	if res := <-out; !res.ok || res.n != 12 {
		t.Fatalf("expected 12, got %+v", res)
	}
}

func TestModalQueueInputRepromptsOnEscape(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	out := make(chan string, 1)
	go func() {
		value, _ := q.InputString(context.Background(), "name?")
		out <- value
	}()
	prompter.nextCall(t)
	prompter.answer(t, "", false)
	prompter.nextCall(t)
	prompter.answer(t, "paula", true)
	if got := <-out; got != "paula" {
		t.Fatalf("expected paula, got %q", got)
	}
}

func TestModalQueueInputEmptyIsNoValue(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	out := make(chan bool, 1)
	go func() {
		_, ok := q.InputString(context.Background(), "name?")
		out <- ok
	}()
	prompter.nextCall(t)
	prompter.answer(t, "", true)
	if <-out {
		t.Fatalf("empty answer must be no value")
	}
}

func TestModalQueueNewInputCancelsPrevious(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	first := make(chan bool, 1)
	go func() {
		_, ok := q.InputString(context.Background(), "first")
		first <- ok
	}()
	prompter.nextCall(t)

	second := make(chan string, 1)
	go func() {
		value, _ := q.InputString(context.Background(), "second")
		second <- value
	}()
	if ok := <-first; ok {
		t.Fatalf("superseded prompt must return no value")
	}
	prompter.nextCall(t)
	prompter.answer(t, "x", true)
	if got := <-second; got != "x" {
		t.Fatalf("expected x, got %q", got)
	}
}

func TestModalQueueCancelAllCancelsInput(t *testing.T) {
	prompter := newFakePrompter()
	q := NewModalQueue(prompter, nil)
	out := make(chan bool, 1)
	go func() {
		_, ok := q.InputInt(context.Background(), "n?")
		out <- ok
	}()
	prompter.nextCall(t)
	q.CancelAll()
	if ok := <-out; ok {
		t.Fatalf("cancelled prompt must return no value")
	}
	if prompter.canceledCount() != 1 {
		t.Fatalf("expected prompter to observe cancellation")
	}
}
