package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// InvalidIntegerMessage is shown by the integer prompt validator.
const InvalidIntegerMessage = "You have to enter a valid integer number"

// ModalQueue serializes host modal messages and owns the single input slot.
// Messages are shown one at a time in arrival order.
type ModalQueue struct {
	prompter Prompter
	logger   pslog.Logger

	mu       sync.Mutex
	queue    []*modalMessage
	draining bool

	inputGen    uint64
	inputCancel context.CancelFunc
}

type modalMessage struct {
	kind schema.ModalKind
	text string
	done chan struct{}
	err  error
}

// wait returns once msg was dismissed, with the display error if any.
func (m *modalMessage) wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewModalQueue returns a queue that displays through prompter.
func NewModalQueue(prompter Prompter, logger pslog.Logger) *ModalQueue {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &ModalQueue{prompter: prompter, logger: logger}
}

// ShowError queues an error message and waits for its dismissal.
func (q *ModalQueue) ShowError(ctx context.Context, text string) error {
	return q.enqueue(schema.ModalError, text).wait(ctx)
}

// ShowStatus queues a status message and waits for its dismissal.
func (q *ModalQueue) ShowStatus(ctx context.Context, text string) error {
	return q.enqueue(schema.ModalStatus, text).wait(ctx)
}

// Enqueue appends a message and returns a channel closed on dismissal. The
// channel is never closed when CancelAll drops the message before it shows.
func (q *ModalQueue) Enqueue(kind schema.ModalKind, text string) <-chan struct{} {
	return q.enqueue(kind, text).done
}

func (q *ModalQueue) enqueue(kind schema.ModalKind, text string) *modalMessage {
	msg := &modalMessage{kind: kind, text: text, done: make(chan struct{})}
	q.mu.Lock()
	q.queue = append(q.queue, msg)
	start := !q.draining
	q.draining = true
	depth := len(q.queue)
	q.mu.Unlock()
	q.logger.Trace("modal queued", "kind", kind, "depth", depth)
	if start {
		go q.drain()
	}
	return msg
}

func (q *ModalQueue) drain() {
	ctx := pslog.ContextWithLogger(context.Background(), q.logger)
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		msg := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		if q.prompter != nil {
			if err := q.prompter.ShowMessage(ctx, msg.kind, msg.text); err != nil {
				q.logger.Warn("modal display failed", "kind", msg.kind, "err", err)
				msg.err = err
			}
		}
		close(msg.done)
	}
}

// Queued returns the number of messages waiting behind the one on screen.
func (q *ModalQueue) Queued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// CancelAll drops queued messages without dismissing them and cancels the
// open input prompt. A message already on screen stays until dismissed.
func (q *ModalQueue) CancelAll() {
	q.mu.Lock()
	dropped := len(q.queue)
	q.queue = nil
	q.mu.Unlock()
	q.CancelInputs()
	q.logger.Debug("modals cancelled", "dropped", dropped)
}

// CancelInputs cancels only the open input prompt.
func (q *ModalQueue) CancelInputs() {
	q.mu.Lock()
	q.inputGen++
	if q.inputCancel != nil {
		q.inputCancel()
		q.inputCancel = nil
	}
	q.mu.Unlock()
}

// InputString shows a text prompt. It returns false when the prompt was
// cancelled or the user entered nothing.
func (q *ModalQueue) InputString(ctx context.Context, prompt string) (string, bool) {
	return q.input(ctx, InputPrompt{Text: prompt, Kind: schema.PromptText})
}

// InputInt shows an integer prompt. It returns false when the prompt was
// cancelled or the user entered nothing.
func (q *ModalQueue) InputInt(ctx context.Context, prompt string) (int64, bool) {
	value, ok := q.input(ctx, InputPrompt{
		Text:     prompt,
		Kind:     schema.PromptInteger,
		Validate: validateInteger,
	})
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func validateInteger(value string) string {
	if value == "" {
		return ""
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
		return InvalidIntegerMessage
	}
	return ""
}

func (q *ModalQueue) input(ctx context.Context, prompt InputPrompt) (string, bool) {
	if q.prompter == nil {
		return "", false
	}
	ctx, gen, cancel := q.beginInput(ctx)
	defer q.endInput(gen, cancel)
	for {
		value, ok, err := q.prompter.PromptInput(ctx, prompt)
		if err != nil {
			if ctx.Err() == nil {
				q.logger.Warn("input prompt failed", "kind", prompt.Kind, "err", err)
			}
			return "", false
		}
		if ctx.Err() != nil || !q.currentInput(gen) {
			return "", false
		}
		if !ok {
			continue
		}
		if value == "" {
			return "", false
		}
		return value, true
	}
}

func (q *ModalQueue) beginInput(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	if q.inputCancel != nil {
		q.inputCancel()
	}
	q.inputGen++
	gen := q.inputGen
	q.inputCancel = cancel
	q.mu.Unlock()
	return ctx, gen, cancel
}

func (q *ModalQueue) endInput(gen uint64, cancel context.CancelFunc) {
	cancel()
	q.mu.Lock()
	if q.inputGen == gen {
		q.inputCancel = nil
	}
	q.mu.Unlock()
}

func (q *ModalQueue) currentInput(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inputGen == gen
}
