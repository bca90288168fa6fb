package streamworker

import (
	"context"
	"sort"
	"sync"

	"goa.design/clue/log"
)

// Dispatcher routes events to handlers by name. An event nobody handles is
// reported as an error instead of being silently ignored.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]func(Event) error
	unknown  func(Event)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]func(Event) error),
	}
}

// On registers fn for name, replacing any previous handler.
func (d *Dispatcher) On(name string, fn func(Event)) *Dispatcher {
	return d.set(name, func(ev Event) error {
		fn(ev)
		return nil
	})
}

// OnTyped registers fn for name and asserts the payload type. A payload of
// another type is a ChannelDeliveryError and fn is not called.
func OnTyped[T any](d *Dispatcher, name string, fn func(T)) *Dispatcher {
	return d.set(name, func(ev Event) error {
		v, ok := ev.Payload.(T)
		if !ok {
			var want T
			return NewError(KindChannelDelivery, ErrorLevelWarning, "", nil, "event %q: payload %T is not %T", ev.Name, ev.Payload, want)
		}
		fn(v)
		return nil
	})
}

// OnUnknown installs a fallback for names without a handler.
func (d *Dispatcher) OnUnknown(fn func(Event)) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unknown = fn
	return d
}

func (d *Dispatcher) set(name string, h func(Event) error) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
	return d
}

func (d *Dispatcher) Dispatch(ev Event) error {
	d.mu.RLock()
	h, ok := d.handlers[ev.Name]
	unknown := d.unknown
	d.mu.RUnlock()

	if ok {
		return h(ev)
	}
	if unknown != nil {
		unknown(ev)
		return nil
	}
	return NewError(KindChannelDelivery, ErrorLevelWarning, "", ErrUnknownEvent, "no handler for event %q", ev.Name)
}

func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	d.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Subscriber adapts d for Bridge.Start. Dispatch errors are logged to ctx.
func (d *Dispatcher) Subscriber(ctx context.Context, onClose func(), onError func(error)) Subscriber {
	return Callbacks{
		Event: func(ev Event) {
			if err := d.Dispatch(ev); err != nil {
				log.Warn(ctx, log.KV{K: "msg", V: "dispatch failed"}, log.KV{K: "event", V: ev.Name}, log.KV{K: "err", V: err.Error()})
			}
		},
		Close: onClose,
		Error: onError,
	}
}
