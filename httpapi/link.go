package httpapi

import (
	"context"
	"sync"

	"pkt.systems/hamsterbridge/internal/transport"
	"pkt.systems/hamsterbridge/schema"
)

// Link routes host messages to the attached rendering context. Only one
// rendering context is attached at a time.
type Link struct {
	mu      sync.Mutex
	current transport.Endpoint
}

// NewLink returns a detached link.
func NewLink() *Link {
	return &Link{}
}

// Post implements core.Poster.
func (l *Link) Post(ctx context.Context, msg schema.Message) error {
	l.mu.Lock()
	ep := l.current
	l.mu.Unlock()
	if ep == nil {
		return schema.ErrNotConnected
	}
	return ep.Post(ctx, msg)
}

// Attach makes ep current and returns the endpoint it replaced, if any.
func (l *Link) Attach(ep transport.Endpoint) transport.Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.current
	l.current = ep
	return prev
}

// Detach clears the link if ep is still current.
func (l *Link) Detach(ep transport.Endpoint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != ep {
		return false
	}
	l.current = nil
	return true
}

// ConnID returns the id of the attached endpoint, or "".
func (l *Link) ConnID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return ""
	}
	return l.current.ID()
}
