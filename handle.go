package streamworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"
)

func newHandle(ctx context.Context, workerID string, cfg Config, opts Options, w Worker) *Handle {
	id := uuid.NewString()
	loop := opts.Loop
	ownLoop := loop == nil
	if ownLoop {
		loop = NewEventLoop()
	}

	h := &Handle{
		ctx:      log.With(ctx, log.KV{K: "worker", V: workerID}, log.KV{K: "handle", V: id}),
		id:       id,
		worker:   workerID,
		cfg:      cfg,
		opts:     opts,
		metrics:  opts.Metrics,
		instance: w,
		running:  make(chan struct{}),
		done:     make(chan struct{}),
		inbox:    NewMailbox[Event](opts.InboxCapacity, opts.InboxPolicy),
		outbox:   NewMailbox[pending](opts.QueueCapacity, opts.OverflowPolicy),
		loop:     loop,
		ownLoop:  ownLoop,
		mux:      newOutMux(opts.Protocol),
		kill:     func() {},
	}
	h.state.Store(int32(StateStarting))

	onDrop := func() {
		if h.metrics != nil {
			h.metrics.AddDropped(1)
		}
	}
	h.inbox.OnDrop(onDrop)
	h.outbox.OnDrop(onDrop)
	return h
}

func (h *Handle) start() {
	// The worker keeps the caller's values (logger) but not its
	// cancellation; cancellation is turned into a cooperative Close below.
	workerCtx, kill := WithCloseSignal(context.WithoutCancel(h.ctx))
	h.kill = kill

	go h.run(workerCtx)

	if h.ctx.Done() != nil {
		go func() {
			select {
			case <-h.ctx.Done():
				h.Close()
			case <-h.done:
			}
		}()
	}
}

func (h *Handle) run(ctx context.Context) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindWorkerRuntime, ErrorLevelCritical, h.worker, fmt.Errorf("%v", r), "worker panicked")
		}
		h.finish(err)
	}()

	h.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
	h.runningOnce.Do(func() { close(h.running) })
	log.Debug(ctx, log.KV{K: "msg", V: "worker running"})

	if runErr := h.instance.Run(ctx, &Port{h: h, ctx: ctx}); runErr != nil {
		err = h.classify(runErr)
	}
}

// classify turns whatever Run returned into the terminal error descriptor.
func (h *Handle) classify(err error) error {
	if errors.Is(err, ErrInputClosed) || errors.Is(err, ErrHandleClosed) {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindWorkerRuntime, ErrorLevelError, h.worker, err, "worker failed")
}

// finish records the terminal outcome. Only the first call wins; it seals
// both queues and schedules the terminal task behind any pending delivery.
func (h *Handle) finish(err error) bool {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return false
	}
	h.finished = true
	h.err = err
	h.mu.Unlock()

	h.runningOnce.Do(func() { close(h.running) })
	h.inbox.Close()
	h.outbox.Close()
	h.kill()

	if err := h.loop.Schedule(h.terminate); err != nil {
		log.Warn(h.ctx, log.KV{K: "msg", V: "event loop stopped, terminating inline"})
		go h.terminate()
	}
	return true
}

func (h *Handle) terminate() {
	h.deliver()

	h.mu.Lock()
	err := h.err
	h.mu.Unlock()

	if err == nil {
		h.state.Store(int32(StateClosed))
		log.Debug(h.ctx, log.KV{K: "msg", V: "worker closed"})
	} else {
		h.state.Store(int32(StateFailed))
		log.Error(h.ctx, err, log.KV{K: "msg", V: "worker failed"})
		if h.metrics != nil {
			h.metrics.AddError(1)
		}
	}

	h.mux.terminate(err)
	close(h.done)
	if h.ownLoop {
		h.loop.Stop()
	}
}

// deliver runs on the event loop. It hands every pending event to the
// subscribers in publish order.
func (h *Handle) deliver() {
	h.scheduled.Store(false)
	if h.State().Terminal() {
		return
	}

	batch := h.outbox.Drain()
	if len(batch) == 0 {
		return
	}
	if h.metrics != nil {
		h.metrics.AddSample(uint64(len(batch)))
	}
	for _, p := range batch {
		if h.metrics != nil {
			h.metrics.AddDelivered(time.Since(p.at))
		}
		h.mux.send(p.ev)
	}
}

func (h *Handle) publish(ctx context.Context, ev Event) error {
	if !ev.Valid() {
		err := NewError(KindChannelDelivery, ErrorLevelWarning, h.worker, nil, "event with payload %v has no name", ev.Payload)
		if h.opts.DeliveryErrors == Escalate {
			h.finish(err)
		} else {
			log.Warn(h.ctx, log.KV{K: "msg", V: "dropping malformed event"}, log.KV{K: "err", V: err.Error()})
			if h.metrics != nil {
				h.metrics.AddDropped(1)
			}
		}
		return err
	}

	if err := h.outbox.Put(ctx, pending{ev: ev, at: time.Now()}); err != nil {
		if errors.Is(err, ErrMailboxClosed) {
			return ErrHandleClosed
		}
		return err
	}
	if h.metrics != nil {
		h.metrics.AddPublished(1)
	}

	if h.scheduled.CompareAndSwap(false, true) {
		_ = h.loop.Schedule(h.deliver)
	}
	return nil
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) Worker() string {
	return h.worker
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

// Running is closed once the worker is live, or once the handle has
// reached a terminal outcome without ever running.
func (h *Handle) Running() <-chan struct{} {
	return h.running
}

// Done is closed after the terminal callback has been delivered.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err is the terminal error; nil while running and after a clean close.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the handle is done or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues ev for the worker. Events sent after Close are dropped and
// ErrHandleClosed is returned.
func (h *Handle) Send(ev Event) error {
	if !ev.Valid() {
		return NewError(KindChannelDelivery, ErrorLevelWarning, h.worker, nil, "event with payload %v has no name", ev.Payload)
	}
	if s := h.State(); s != StateStarting && s != StateRunning {
		log.Debug(h.ctx, log.KV{K: "msg", V: "dropping input after close"}, log.KV{K: "event", V: ev.Name})
		return ErrHandleClosed
	}

	if err := h.inbox.Put(h.ctx, ev); err != nil {
		if errors.Is(err, ErrMailboxClosed) {
			return ErrHandleClosed
		}
		return err
	}
	return nil
}

func (h *Handle) SendEvent(name string, payload any) error {
	return h.Send(Event{Name: name, Payload: payload})
}

// Close asks the worker to stop. It never blocks and only the first call
// has an effect. Input already queued stays readable by the worker.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		for {
			s := h.State()
			if s != StateStarting && s != StateRunning {
				break
			}
			if h.state.CompareAndSwap(int32(s), int32(StateClosing)) {
				break
			}
		}

		h.inbox.Close()
		h.kill()
		log.Debug(h.ctx, log.KV{K: "msg", V: "close requested"})

		if h.opts.CloseTimeout > 0 {
			go h.watchdog(h.opts.CloseTimeout)
		}
	})
}

func (h *Handle) watchdog(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-h.done:
	case <-t.C:
		err := NewError(KindWorkerUnresponsive, ErrorLevelCritical, h.worker, nil, "worker did not exit within %s of close", d)
		h.finish(err)
	}
}

// Subscribe attaches sub to the outbound side. Subscribers only see events
// delivered after they attach.
func (h *Handle) Subscribe(sub Subscriber) (Subscription, error) {
	return h.mux.add(sub)
}

// Stream attaches a new Stream using the bridge's default buffer. On a
// shared EventLoop the buffer is unbounded so a slow reader cannot stall
// other handles.
func (h *Handle) Stream() (*Stream, error) {
	buffer := h.opts.StreamBuffer
	if !h.ownLoop {
		buffer = 0
	}
	s := NewStream(buffer, Block)
	if _, err := h.Subscribe(s); err != nil {
		return nil, err
	}
	return s, nil
}
