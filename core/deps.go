package core

import (
	"context"

	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// Poster delivers a message to the other context. Delivery is fire and
// forget; a nil error only means the message was handed to the channel.
type Poster interface {
	Post(ctx context.Context, msg schema.Message) error
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(ctx context.Context, msg schema.Message) error

// Post calls f.
func (f PosterFunc) Post(ctx context.Context, msg schema.Message) error {
	return f(ctx, msg)
}

// InputPrompt describes one host input box.
type InputPrompt struct {
	Text string
	Kind schema.PromptKind
	// Validate returns a non-empty message when value must be rejected.
	Validate func(value string) string
}

// Prompter is the host UI toolkit used by the modal queue.
type Prompter interface {
	// ShowMessage displays a modal message and returns once it is dismissed.
	ShowMessage(ctx context.Context, kind schema.ModalKind, text string) error
	// PromptInput displays an input box. ok is false when the user escaped it.
	PromptInput(ctx context.Context, prompt InputPrompt) (value string, ok bool, err error)
}

// ControlHandler executes controls on the rendering side.
type ControlHandler interface {
	HandleControl(ctx context.Context, control schema.Control) error
}

// ControlHandlerFunc adapts a function to ControlHandler.
type ControlHandlerFunc func(ctx context.Context, control schema.Control) error

// HandleControl calls f.
func (f ControlHandlerFunc) HandleControl(ctx context.Context, control schema.Control) error {
	return f(ctx, control)
}

// HostDeps captures collaborators for the host bridge.
type HostDeps struct {
	Poster   Poster
	Prompter Prompter
	Fetcher  Fetcher
	Sink     EventSink
	Logger   pslog.Logger
}

// SandboxDeps captures collaborators for the rendering-side bridge.
type SandboxDeps struct {
	Poster   Poster
	Controls ControlHandler
	Logger   pslog.Logger
}
