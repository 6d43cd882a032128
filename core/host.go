package core

import (
	"bytes"
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

const (
	// NoGameMessage is shown when a proxied request could not reach the game.
	NoGameMessage = "No running Hamster game found."
	// GameLoadErrorPrefix starts the message shown for a non-200 game reply.
	GameLoadErrorPrefix = "Error while loading hamster game.\n"
)

// HostBridge is the host side of the channel. It routes every inbound
// rendering-context message to exactly one component.
type HostBridge struct {
	cfg      schema.BridgeConfig
	poster   Poster
	fetcher  Fetcher
	sink     EventSink
	logger   pslog.Logger
	modal    *ModalQueue
	log      *LogReplay
	controls *ControlMirror

	mu           sync.Mutex
	lastNetError time.Time
	now          func() time.Time

	wg sync.WaitGroup
}

// NewHostBridge wires the host components around deps.
func NewHostBridge(cfg schema.BridgeConfig, deps HostDeps) (*HostBridge, error) {
	normalized, err := schema.NormalizeBridgeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Poster == nil {
		return nil, errors.New("host bridge requires a poster")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	sink := deps.Sink
	if sink == nil {
		sink = nopSink{}
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = HTTPFetcher{BaseURL: normalized.GameBaseURL}
	}
	return &HostBridge{
		cfg:      normalized,
		poster:   deps.Poster,
		fetcher:  fetcher,
		sink:     sink,
		logger:   logger,
		modal:    NewModalQueue(deps.Prompter, logger),
		log:      NewLogReplay(sink),
		controls: NewControlMirror(sink, logger),
		now:      time.Now,
	}, nil
}

// Modal returns the host modal queue.
func (b *HostBridge) Modal() *ModalQueue { return b.modal }

// Log returns the host log mirror.
func (b *HostBridge) Log() *LogReplay { return b.log }

// Controls returns the host control mirror.
func (b *HostBridge) Controls() *ControlMirror { return b.controls }

// Snapshot returns the mirrored log and controls.
func (b *HostBridge) Snapshot() schema.BridgeSnapshot {
	return schema.BridgeSnapshot{
		Log:      b.log.VisibleLog(),
		Cursor:   b.log.Cursor(),
		Controls: b.controls.Flags(),
	}
}

// Wait blocks until every prompt and proxied request started by Dispatch
// has finished.
func (b *HostBridge) Wait() {
	b.wg.Wait()
}

// Dispatch handles one inbound message. Modals are queued inline so they show
// in arrival order. Waiting on prompts and proxied requests happens on
// goroutines bounded by ctx.
func (b *HostBridge) Dispatch(ctx context.Context, msg schema.Message) {
	cmd := msg.Command()
	log := logx.WithCommand(pslog.Ctx(ctx), cmd)
	switch cmd {
	case schema.CmdRequest:
		b.spawn(func() { b.handleRequest(ctx, msg) })
	case schema.CmdInputString, schema.CmdInputInteger:
		b.spawn(func() { b.handleInput(ctx, cmd, msg) })
	case schema.CmdError:
		text, _ := msg.String(schema.KeyMessage)
		shown := b.modal.enqueue(schema.ModalError, text)
		b.spawn(func() { b.answerError(ctx, msg, shown) })
	case schema.CmdInfo:
		text, _ := msg.String(schema.KeyMessage)
		b.modal.Enqueue(schema.ModalStatus, text)
	case schema.CmdCancelInput:
		b.modal.CancelAll()
	case schema.CmdAddLog:
		b.log.AddLogEntry(logEntryFromMessage(msg))
	case schema.CmdRemoveLog:
		if !b.log.RemoveLogEntry() {
			log.Debug("remove log on empty log ignored")
		}
	case schema.CmdReset:
		b.log.Reset()
	case schema.CmdControlsActive:
		name, _ := msg.String(schema.KeyControl)
		b.controls.SetControlActive(name, msg.Truthy(schema.KeyActive))
	default:
		log.Warn("host dropped unknown message")
	}
}

// InvokeControl asks the rendering context to run control.
func (b *HostBridge) InvokeControl(ctx context.Context, name string) error {
	control, err := schema.ValidateControlName(name)
	if err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	if err := b.poster.Post(ctx, schema.NewMessage(schema.CmdControls, schema.KeyControl, string(control))); err != nil {
		return fmt.Errorf("post control %s: %w", control, err)
	}
	pslog.Ctx(ctx).Info("control invoked", "control", control)
	return nil
}

func (b *HostBridge) spawn(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *HostBridge) reply(ctx context.Context, msg schema.Message) {
	if err := b.poster.Post(ctx, msg); err != nil {
		logx.WithCommand(pslog.Ctx(ctx), msg.Command()).Warn("host reply failed", "err", err)
	}
}

func (b *HostBridge) handleRequest(ctx context.Context, msg schema.Message) {
	log := pslog.Ctx(ctx)
	rawID, ok := msg.Int(schema.KeyID)
	if !ok {
		log.Warn("request without id dropped")
		return
	}
	id := schema.RequestID(rawID)
	log = logx.WithRequest(log, id)

	method, _ := msg.String(schema.KeyMethod)
	target, ok := msg.String(schema.KeyTarget)
	if !ok {
		target, ok = msg.String(schema.KeyURL)
	}
	if !ok {
		log.Warn("request without target dropped")
		return
	}
	var body *string
	if msg.Has(schema.KeyBody) {
		s, ok := msg.String(schema.KeyBody)
		if !ok {
			log.Warn("request with non-string body dropped")
			return
		}
		body = &s
	}
	method, err := schema.NormalizeMethod(method)
	if err != nil {
		b.reply(ctx, schema.NewMessage(schema.CmdRequestResponse, schema.KeyID, id, schema.KeyError, err.Error()))
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, b.cfg.FetchTimeout)
	res, err := b.fetcher.Fetch(fetchCtx, method, target, body)
	cancel()
	if err != nil {
		log.Debug("proxied request failed", "method", method, "target", target, "err", err)
		b.reportNoGame()
		b.reply(ctx, schema.NewMessage(schema.CmdRequestResponse,
			schema.KeyID, id,
			schema.KeyError, err.Error(),
			schema.KeyNetError, true,
		))
		return
	}
	if res.Status != 200 {
		text := string(res.Body)
		log.Info("proxied request rejected", "method", method, "target", target, "status", res.Status)
		b.modal.Enqueue(schema.ModalError, GameLoadErrorPrefix+text)
		b.reply(ctx, schema.NewMessage(schema.CmdRequestResponse,
			schema.KeyID, id,
			schema.KeyError, fmt.Sprintf("Error fetching: %d; %s", res.Status, text),
		))
		return
	}
	payload, err := decodeJSONValue(res.Body)
	if err != nil {
		b.reply(ctx, schema.NewMessage(schema.CmdRequestResponse,
			schema.KeyID, id,
			schema.KeyError, "invalid response body: "+err.Error(),
		))
		return
	}
	reply := schema.NewMessage(schema.CmdRequestResponse, schema.KeyID, id)
	reply[schema.KeyResponse] = payload
	b.reply(ctx, reply)
	log.Trace("proxied request answered", "method", method, "target", target)
}

// reportNoGame shows the no-game modal at most once per throttle window.
func (b *HostBridge) reportNoGame() {
	b.mu.Lock()
	now := b.now()
	show := b.lastNetError.IsZero() || now.Sub(b.lastNetError) >= b.cfg.ErrorThrottle
	if show {
		b.lastNetError = now
	}
	b.mu.Unlock()
	if show {
		b.modal.Enqueue(schema.ModalError, NoGameMessage)
	}
}

func (b *HostBridge) handleInput(ctx context.Context, cmd schema.Command, msg schema.Message) {
	rawID, ok := msg.Int(schema.KeyInputID)
	if !ok {
		pslog.Ctx(ctx).Warn("input prompt without input id dropped", "command", cmd)
		return
	}
	id := schema.InputID(rawID)
	prompt, _ := msg.String(schema.KeyMessage)
	var value any
	if cmd == schema.CmdInputInteger {
		if n, ok := b.modal.InputInt(ctx, prompt); ok {
			value = n
		}
	} else {
		if s, ok := b.modal.InputString(ctx, prompt); ok {
			value = s
		}
	}
	b.reply(ctx, schema.NewMessage(schema.CmdInputResult, schema.KeyInputID, id, schema.KeyMessage, value))
}

// answerError acknowledges an error modal once it is dismissed. A modal that
// could not be shown is answered without a message so the alert settles.
// Dropped modals are never answered.
func (b *HostBridge) answerError(ctx context.Context, msg schema.Message, shown *modalMessage) {
	rawID, hasID := msg.Int(schema.KeyInputID)
	var answer any = schema.AckMessage
	if err := shown.wait(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		answer = nil
	}
	if !hasID {
		return
	}
	b.reply(ctx, schema.NewMessage(schema.CmdInputResult,
		schema.KeyInputID, schema.InputID(rawID),
		schema.KeyMessage, answer,
	))
}

func logEntryFromMessage(msg schema.Message) schema.LogEntry {
	entry := schema.LogEntry{}
	entry.Text, _ = msg.String(schema.KeyMessage)
	entry.Color, _ = msg.String(schema.KeyColor)
	if owner, ok := msg.Int(schema.KeyHamsterID); ok {
		entry.OwnerID = &owner
	}
	return entry
}

func decodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return value, nil
}
