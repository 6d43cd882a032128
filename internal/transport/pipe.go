package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

const pipeBuffer = 64

// Pipe returns two connected in-memory endpoints. Messages are JSON encoded
// on Post and decoded on delivery so both sides see wire-shaped values.
func Pipe() (Endpoint, Endpoint) {
	a := newPipeEnd()
	b := newPipeEnd()
	a.peer, b.peer = b, a
	return a, b
}

type pipeEnd struct {
	id     string
	in     chan []byte
	peer   *pipeEnd
	once   sync.Once
	closed chan struct{}
}

func newPipeEnd() *pipeEnd {
	return &pipeEnd{
		id:     uuid.NewString(),
		in:     make(chan []byte, pipeBuffer),
		closed: make(chan struct{}),
	}
}

func (p *pipeEnd) ID() string { return p.id }

func (p *pipeEnd) Post(ctx context.Context, msg schema.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Command(), err)
	}
	select {
	case <-p.closed:
		return schema.ErrChannelClosed
	case <-p.peer.closed:
		return schema.ErrChannelClosed
	default:
	}
	select {
	case p.peer.in <- data:
		return nil
	case <-p.closed:
		return schema.ErrChannelClosed
	case <-p.peer.closed:
		return schema.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Serve(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.closed:
			return nil
		case <-p.peer.closed:
			return nil
		case data := <-p.in:
			msg, err := schema.DecodeMessage(data)
			if err != nil {
				pslog.Ctx(ctx).Warn("bridge message dropped", "err", err)
				continue
			}
			handle(ctx, msg)
		}
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
