package streamworker

import (
	"context"
	"errors"
)

// Port is the worker's side of the bridge. It is only valid inside Run.
type Port struct {
	h   *Handle
	ctx context.Context
}

// Emit publishes an event to the host. With the Block overflow policy it
// waits while the outbound queue is full.
func (p *Port) Emit(name string, payload any) error {
	return p.h.publish(p.ctx, Event{Name: name, Payload: payload})
}

func (p *Port) EmitEvent(ev Event) error {
	return p.h.publish(p.ctx, ev)
}

// Receive waits for the next inbound event. Once the handle is closed and
// queued input is exhausted it returns ErrInputClosed.
func (p *Port) Receive(ctx context.Context) (Event, error) {
	ev, err := p.h.inbox.Take(ctx)
	if errors.Is(err, ErrMailboxClosed) {
		return Event{}, ErrInputClosed
	}
	return ev, err
}

func (p *Port) TryReceive() (Event, bool) {
	return p.h.inbox.TryTake()
}

// Closing fires when the host asks the worker to stop.
func (p *Port) Closing() <-chan struct{} {
	return Closing(p.ctx)
}

func (p *Port) Closed() bool {
	return CloseRequested(p.ctx)
}

func (p *Port) Config() Config {
	return p.h.cfg
}

func (p *Port) Protocol() Protocol {
	return p.h.opts.Protocol
}

func (p *Port) Worker() string {
	return p.h.worker
}
