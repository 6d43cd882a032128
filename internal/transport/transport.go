// Package transport carries bridge messages between the host and the
// rendering context.
package transport

import (
	"context"

	"pkt.systems/hamsterbridge/schema"
)

// Handler receives inbound messages in arrival order.
type Handler func(ctx context.Context, msg schema.Message)

// Endpoint is one side of a message channel.
type Endpoint interface {
	ID() string
	// Post sends msg to the peer.
	Post(ctx context.Context, msg schema.Message) error
	// Serve reads messages and calls handle for each until ctx ends or the
	// channel closes. Malformed messages are logged and skipped.
	Serve(ctx context.Context, handle Handler) error
	Close() error
}

// Direction tells an Observer which way a message travelled.
type Direction string

const (
	// Inbound messages were received from the peer.
	Inbound Direction = "in"
	// Outbound messages were posted to the peer.
	Outbound Direction = "out"
)

// Observer sees every message passing through a tapped endpoint.
type Observer interface {
	Observe(ctx context.Context, connID string, dir Direction, msg schema.Message)
}

// Tap wraps ep so obs sees each message. A nil observer returns ep.
func Tap(ep Endpoint, obs Observer) Endpoint {
	if obs == nil {
		return ep
	}
	return &tapped{Endpoint: ep, obs: obs}
}

type tapped struct {
	Endpoint
	obs Observer
}

func (t *tapped) Post(ctx context.Context, msg schema.Message) error {
	if err := t.Endpoint.Post(ctx, msg); err != nil {
		return err
	}
	t.obs.Observe(ctx, t.ID(), Outbound, msg)
	return nil
}

func (t *tapped) Serve(ctx context.Context, handle Handler) error {
	return t.Endpoint.Serve(ctx, func(ctx context.Context, msg schema.Message) {
		t.obs.Observe(ctx, t.ID(), Inbound, msg)
		handle(ctx, msg)
	})
}
