package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/hamsterbridge/internal/logx"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// Correlator turns request/requestResponse message pairs into blocking calls.
type Correlator struct {
	poster  Poster
	timeout time.Duration
	logger  pslog.Logger

	mu      sync.Mutex
	nextID  schema.RequestID
	pending map[schema.RequestID]*pendingRequest
	hooks   []func()
}

type pendingRequest struct {
	id     schema.RequestID
	method string
	target string
	result chan requestResult
	timer  *time.Timer
}

type requestResult struct {
	payload json.RawMessage
	err     error
}

// NewCorrelator returns a correlator posting through poster. A zero timeout
// selects schema.DefaultRequestTimeout.
func NewCorrelator(poster Poster, timeout time.Duration, logger pslog.Logger) *Correlator {
	if timeout <= 0 {
		timeout = schema.DefaultRequestTimeout
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Correlator{
		poster:  poster,
		timeout: timeout,
		logger:  logger,
		pending: make(map[schema.RequestID]*pendingRequest),
	}
}

// OnNetworkError registers a hook run after a response flagged neterror settles.
func (c *Correlator) OnNetworkError(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Send posts a request and waits for its response, the timeout, or ctx.
// body is omitted from the message when nil.
func (c *Correlator) Send(ctx context.Context, method, target string, body *string) (json.RawMessage, error) {
	if c.poster == nil {
		return nil, errors.New("correlator has no poster")
	}
	method, err := schema.NormalizeMethod(method)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	entry := &pendingRequest{
		id:     id,
		method: method,
		target: target,
		result: make(chan requestResult, 1),
	}
	c.pending[id] = entry
	c.mu.Unlock()

	log := logx.WithRequest(c.logger, id)
	msg := schema.NewMessage(schema.CmdRequest,
		schema.KeyMethod, method,
		schema.KeyTarget, target,
		schema.KeyID, id,
	)
	if body != nil {
		msg[schema.KeyBody] = *body
	}
	if err := c.poster.Post(ctx, msg); err != nil {
		c.take(id)
		log.Warn("correlator post failed", "method", method, "target", target, "err", err)
		return nil, fmt.Errorf("post request %d: %w", id, err)
	}
	log.Trace("correlator request posted", "method", method, "target", target)

	c.mu.Lock()
	if _, ok := c.pending[id]; ok {
		entry.timer = time.AfterFunc(c.timeout, func() { c.expire(id) })
	}
	c.mu.Unlock()

	select {
	case res := <-entry.result:
		return res.payload, res.err
	case <-ctx.Done():
		if c.take(id) != nil {
			log.Debug("correlator request abandoned", "err", ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// HandleResponse settles the pending request named by a requestResponse
// message. It reports whether a pending entry was found.
func (c *Correlator) HandleResponse(msg schema.Message) bool {
	raw, ok := msg.Int(schema.KeyID)
	if !ok {
		c.logger.Warn("correlator response without id dropped")
		return false
	}
	id := schema.RequestID(raw)
	log := logx.WithRequest(c.logger, id)

	var res requestResult
	network := false
	if msg.Has(schema.KeyError) {
		network = msg.Truthy(schema.KeyNetError)
		res.err = &schema.RemoteError{Message: msg.ErrorText(), Network: network}
	} else {
		payload, err := json.Marshal(msg.Value(schema.KeyResponse))
		if err != nil {
			res.err = fmt.Errorf("%w: response payload: %v", schema.ErrInvalidMessage, err)
		} else {
			res.payload = payload
		}
	}

	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		if entry.timer != nil {
			entry.timer.Stop()
		}
		entry.result <- res
	}
	hooks := append([]func(){}, c.hooks...)
	c.mu.Unlock()

	if !ok {
		log.Debug("correlator response for unknown id dropped")
		return false
	}
	if res.err != nil {
		log.Debug("correlator request failed", "method", entry.method, "target", entry.target, "err", res.err)
	} else {
		log.Trace("correlator request settled", "method", entry.method)
	}
	if network {
		for _, hook := range hooks {
			hook()
		}
	}
	return true
}

// Pending returns the number of requests awaiting a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) expire(id schema.RequestID) {
	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		entry.result <- requestResult{err: schema.ErrCorrelationTimeout}
	}
	c.mu.Unlock()
	if ok {
		logx.WithRequest(c.logger, id).Warn("correlator request timed out", "method", entry.method, "target", entry.target, "timeout", c.timeout)
	}
}

func (c *Correlator) take(id schema.RequestID) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	return entry
}
