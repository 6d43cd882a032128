package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/hamsterbridge/internal/logx"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// InputCorrelator pairs input prompts posted to the host with their
// inputResult replies. Ids are chosen by the caller.
type InputCorrelator struct {
	poster Poster
	logger pslog.Logger

	mu      sync.Mutex
	pending map[schema.InputID]*pendingInput
}

type pendingInput struct {
	id     schema.InputID
	mode   schema.InputMode
	result chan inputResult
}

type inputResult struct {
	answer schema.InputAnswer
	err    error
}

// NewInputCorrelator returns an input correlator posting through poster.
func NewInputCorrelator(poster Poster, logger pslog.Logger) *InputCorrelator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &InputCorrelator{
		poster:  poster,
		logger:  logger,
		pending: make(map[schema.InputID]*pendingInput),
	}
}

func inputCommand(mode schema.InputMode) (schema.Command, error) {
	switch mode {
	case schema.InputReadString:
		return schema.CmdInputString, nil
	case schema.InputReadInt:
		return schema.CmdInputInteger, nil
	case schema.InputConfirmAlert:
		return schema.CmdError, nil
	default:
		return "", fmt.Errorf("unknown input mode %q", mode)
	}
}

// RequestInput posts a prompt and blocks until its result, CancelAll
// discarding it followed by ctx ending, or ctx ending.
// Registering an id that is already pending replaces the older entry.
func (c *InputCorrelator) RequestInput(ctx context.Context, mode schema.InputMode, prompt string, id schema.InputID) (schema.InputAnswer, error) {
	if c.poster == nil {
		return schema.InputAnswer{}, errors.New("input correlator has no poster")
	}
	cmd, err := inputCommand(mode)
	if err != nil {
		return schema.InputAnswer{}, err
	}
	entry := &pendingInput{id: id, mode: mode, result: make(chan inputResult, 1)}
	log := logx.WithInput(c.logger, id)

	c.mu.Lock()
	if _, ok := c.pending[id]; ok {
		log.Debug("input correlator replacing pending prompt")
	}
	c.pending[id] = entry
	c.mu.Unlock()

	msg := schema.NewMessage(cmd, schema.KeyMessage, prompt, schema.KeyInputID, id)
	if err := c.poster.Post(ctx, msg); err != nil {
		c.remove(entry)
		log.Warn("input correlator post failed", "mode", mode, "err", err)
		return schema.InputAnswer{}, fmt.Errorf("post input %d: %w", id, err)
	}
	log.Trace("input prompt posted", "mode", mode)

	select {
	case res := <-entry.result:
		return res.answer, res.err
	case <-ctx.Done():
		c.remove(entry)
		return schema.InputAnswer{}, ctx.Err()
	}
}

// ReadString asks for free text. ok is false when the user gave no input.
func (c *InputCorrelator) ReadString(ctx context.Context, prompt string, id schema.InputID) (string, bool, error) {
	answer, err := c.RequestInput(ctx, schema.InputReadString, prompt, id)
	if err != nil {
		return "", false, err
	}
	return answer.Text, answer.Present, nil
}

// ReadInt asks for an integer. ok is false when the user gave no input.
func (c *InputCorrelator) ReadInt(ctx context.Context, prompt string, id schema.InputID) (int64, bool, error) {
	answer, err := c.RequestInput(ctx, schema.InputReadInt, prompt, id)
	if err != nil {
		return 0, false, err
	}
	return answer.Integer, answer.Present, nil
}

// Confirm shows an alert and returns once the host acknowledged it.
func (c *InputCorrelator) Confirm(ctx context.Context, prompt string, id schema.InputID) error {
	_, err := c.RequestInput(ctx, schema.InputConfirmAlert, prompt, id)
	return err
}

// HandleResult settles the pending prompt named by an inputResult message.
// It reports whether a pending entry was found.
func (c *InputCorrelator) HandleResult(msg schema.Message) bool {
	raw, ok := msg.Int(schema.KeyInputID)
	if !ok {
		c.logger.Warn("input result without input id dropped")
		return false
	}
	id := schema.InputID(raw)
	log := logx.WithInput(c.logger, id)

	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		entry.result <- evaluateInput(entry.mode, msg)
	}
	c.mu.Unlock()

	if !ok {
		log.Debug("input result for unknown id dropped")
		return false
	}
	log.Trace("input prompt settled", "mode", entry.mode)
	return true
}

func evaluateInput(mode schema.InputMode, msg schema.Message) inputResult {
	if msg.Has(schema.KeyError) {
		return inputResult{err: &schema.RemoteError{
			Message: msg.ErrorText(),
			Network: msg.Truthy(schema.KeyNetError),
		}}
	}
	answer := schema.InputAnswer{Mode: mode}
	value := msg.Value(schema.KeyMessage)
	switch mode {
	case schema.InputReadString:
		if value == nil {
			return inputResult{answer: answer}
		}
		answer.Present = true
		if s, ok := value.(string); ok {
			answer.Text = s
		} else {
			answer.Text = fmt.Sprint(value)
		}
	case schema.InputReadInt:
		if value == nil {
			return inputResult{answer: answer}
		}
		n, ok := schema.IntValue(value)
		if !ok {
			return inputResult{err: &schema.ValidationError{Mode: mode, Value: value, Err: schema.ErrInvalidInteger}}
		}
		answer.Present = true
		answer.Integer = n
	case schema.InputConfirmAlert:
		answer.Present = true
		answer.Confirmed = true
	}
	return inputResult{answer: answer}
}

// CancelAll asks the host to close its open prompts and discards every
// pending entry without settling it. Entries are discarded even when the
// post fails.
func (c *InputCorrelator) CancelAll(ctx context.Context) error {
	var postErr error
	if c.poster != nil {
		postErr = c.poster.Post(ctx, schema.NewMessage(schema.CmdCancelInput))
	}
	c.mu.Lock()
	dropped := len(c.pending)
	c.pending = make(map[schema.InputID]*pendingInput)
	c.mu.Unlock()
	c.logger.Debug("input prompts cancelled", "dropped", dropped)
	if postErr != nil {
		return fmt.Errorf("post cancel input: %w", postErr)
	}
	return nil
}

// Pending returns the number of prompts awaiting a result.
func (c *InputCorrelator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *InputCorrelator) remove(entry *pendingInput) {
	c.mu.Lock()
	if current, ok := c.pending[entry.id]; ok && current == entry {
		delete(c.pending, entry.id)
	}
	c.mu.Unlock()
}
