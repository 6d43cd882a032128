package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pkt.systems/hamsterbridge/internal/logx"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// SandboxBridge is the rendering side of the channel: it issues proxied
// requests and input prompts, mirrors the log and controls to the host, and
// runs controls the host invokes.
type SandboxBridge struct {
	poster   Poster
	handler  ControlHandler
	logger   pslog.Logger
	requests *Correlator
	inputs   *InputCorrelator
	controls *ControlMirror
}

// NewSandboxBridge wires the rendering-side correlators around deps.
func NewSandboxBridge(cfg schema.BridgeConfig, deps SandboxDeps) (*SandboxBridge, error) {
	normalized, err := schema.NormalizeBridgeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Poster == nil {
		return nil, errors.New("sandbox bridge requires a poster")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &SandboxBridge{
		poster:   deps.Poster,
		handler:  deps.Controls,
		logger:   logger,
		requests: NewCorrelator(deps.Poster, normalized.RequestTimeout, logger),
		inputs:   NewInputCorrelator(deps.Poster, logger),
		controls: NewControlMirror(nil, logger),
	}
	// A network error means the remote simulation is gone; its log restarts.
	s.requests.OnNetworkError(func() {
		if err := s.ResetLog(context.Background()); err != nil {
			s.logger.Debug("log reset after network error failed", "err", err)
		}
	})
	return s, nil
}

// Requests returns the request correlator.
func (s *SandboxBridge) Requests() *Correlator { return s.requests }

// Inputs returns the input correlator.
func (s *SandboxBridge) Inputs() *InputCorrelator { return s.inputs }

// OnNetworkError registers a hook run when a proxied request fails with a
// network error.
func (s *SandboxBridge) OnNetworkError(fn func()) {
	s.requests.OnNetworkError(fn)
}

// Dispatch handles one inbound host message.
func (s *SandboxBridge) Dispatch(ctx context.Context, msg schema.Message) {
	cmd := msg.Command()
	switch cmd {
	case schema.CmdRequestResponse:
		s.requests.HandleResponse(msg)
	case schema.CmdInputResult:
		s.inputs.HandleResult(msg)
	case schema.CmdControls:
		name, _ := msg.String(schema.KeyControl)
		control, ok := schema.ParseControl(name)
		if !ok {
			pslog.Ctx(ctx).Debug("unknown control ignored", "control", name)
			return
		}
		if s.handler == nil {
			pslog.Ctx(ctx).Debug("control ignored without handler", "control", control)
			return
		}
		if err := s.handler.HandleControl(ctx, control); err != nil {
			pslog.Ctx(ctx).Warn("control failed", "control", control, "err", err)
		}
	default:
		logx.WithCommand(pslog.Ctx(ctx), cmd).Warn("sandbox dropped unknown message")
	}
}

// Request proxies an HTTP call through the host.
func (s *SandboxBridge) Request(ctx context.Context, method, target string, body *string) (json.RawMessage, error) {
	return s.requests.Send(ctx, method, target, body)
}

// RequestJSON proxies an HTTP call and decodes the response into out.
func (s *SandboxBridge) RequestJSON(ctx context.Context, method, target string, body any, out any) error {
	var payload *string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		text := string(data)
		payload = &text
	}
	raw, err := s.requests.Send(ctx, method, target, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ReadString prompts the host user for text.
func (s *SandboxBridge) ReadString(ctx context.Context, prompt string, id schema.InputID) (string, bool, error) {
	return s.inputs.ReadString(ctx, prompt, id)
}

// ReadInt prompts the host user for an integer.
func (s *SandboxBridge) ReadInt(ctx context.Context, prompt string, id schema.InputID) (int64, bool, error) {
	return s.inputs.ReadInt(ctx, prompt, id)
}

// Confirm shows an alert on the host and waits for its acknowledgement.
func (s *SandboxBridge) Confirm(ctx context.Context, prompt string, id schema.InputID) error {
	return s.inputs.Confirm(ctx, prompt, id)
}

// ShowStatus shows an informational modal on the host without waiting.
func (s *SandboxBridge) ShowStatus(ctx context.Context, text string) error {
	return s.poster.Post(ctx, schema.NewMessage(schema.CmdInfo, schema.KeyMessage, text))
}

// CancelInputs closes every open host prompt.
func (s *SandboxBridge) CancelInputs(ctx context.Context) error {
	return s.inputs.CancelAll(ctx)
}

// AddLog appends a visible log line on the host.
func (s *SandboxBridge) AddLog(ctx context.Context, entry schema.LogEntry) error {
	msg := schema.NewMessage(schema.CmdAddLog, schema.KeyMessage, entry.Text)
	if entry.OwnerID != nil {
		msg[schema.KeyHamsterID] = *entry.OwnerID
	}
	if entry.Color != "" {
		msg[schema.KeyColor] = entry.Color
	}
	return s.poster.Post(ctx, msg)
}

// RemoveLog hides the last visible log line on the host.
func (s *SandboxBridge) RemoveLog(ctx context.Context) error {
	return s.poster.Post(ctx, schema.NewMessage(schema.CmdRemoveLog))
}

// ResetLog clears the host log.
func (s *SandboxBridge) ResetLog(ctx context.Context) error {
	return s.poster.Post(ctx, schema.NewMessage(schema.CmdReset))
}

// SetControlActive records a control's availability and reports it to the host.
func (s *SandboxBridge) SetControlActive(ctx context.Context, control schema.Control, active bool) error {
	if !s.controls.SetControlActive(string(control), active) {
		return fmt.Errorf("%w: %q", schema.ErrUnknownControl, control)
	}
	return s.poster.Post(ctx, schema.NewMessage(schema.CmdControlsActive,
		schema.KeyControl, string(control),
		schema.KeyActive, active,
	))
}

// IsControlActive reports the availability last set for control.
func (s *SandboxBridge) IsControlActive(control schema.Control) bool {
	return s.controls.IsControlActive(string(control))
}
