package streamworker

import (
	"context"
	"errors"
	"fmt"

	"goa.design/clue/log"

	"github.com/Channel-3-Eugene/streamworker/metrics"
)

// NewBridge returns a Bridge that starts workers from reg. Options start
// from DefaultOptions.
func NewBridge(reg *Registry, opts ...Option) *Bridge {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Bridge{
		registry: reg,
		opts:     DefaultOptions().Apply(opts...),
	}
}

func (b *Bridge) Registry() *Registry {
	return b.registry
}

func (b *Bridge) Options() Options {
	return b.opts
}

// Metrics returns the bridge-wide metrics, or nil when none were configured.
func (b *Bridge) Metrics() *metrics.Metrics {
	return b.opts.Metrics
}

// Start resolves workerID, validates cfg with the worker's factory and
// launches the worker on its own goroutine. It does not wait for the worker
// to run. subs are attached before the worker can emit anything.
func (b *Bridge) Start(ctx context.Context, workerID string, cfg Config, subs ...Subscriber) (*Handle, error) {
	factory, ok := b.registry.Lookup(workerID)
	if !ok {
		err := NewError(KindWorkerNotFound, ErrorLevelError, workerID, nil, "worker is not registered")
		log.Error(ctx, err, log.KV{K: "msg", V: "start failed"})
		return nil, err
	}

	cfg = cfg.clone()
	w, err := build(factory, cfg)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) || e.Kind != KindWorkerInit {
			e = NewError(KindWorkerInit, ErrorLevelError, workerID, err, "worker rejected its configuration")
		}
		log.Error(ctx, e, log.KV{K: "msg", V: "start failed"})
		return nil, e
	}

	h := newHandle(ctx, workerID, cfg, b.opts, w)
	for _, sub := range subs {
		if _, err := h.Subscribe(sub); err != nil {
			if h.ownLoop {
				h.loop.Stop()
			}
			return nil, err
		}
	}

	h.start()
	log.Debug(h.ctx, log.KV{K: "msg", V: "worker started"})
	return h, nil
}

func build(factory Factory, cfg Config) (w Worker, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()
	w, err = factory(cfg)
	if err == nil && w == nil {
		err = errors.New("factory returned no worker")
	}
	return w, err
}
