package streamworker

import (
	"context"
	"sync"
	"time"
)

// EndAction is what a Sink does when it is closed.
type EndAction int

const (
	// SendSentinel sends the protocol's end-of-input value under the sink's name.
	SendSentinel EndAction = iota
	// CloseHandle calls Handle.Close.
	CloseHandle
	// NoAction leaves the handle alone.
	NoAction
)

// Sink is the push view of a handle's inbound side.
type Sink struct {
	h       *Handle
	name    string
	timeout time.Duration
	action  EndAction
	onEnd   func(ctx context.Context, h *Handle) error

	mu      sync.RWMutex
	ended   bool
	endOnce sync.Once
	endErr  error
}

type SinkOption func(*Sink)

func WithEndAction(a EndAction) SinkOption {
	return func(s *Sink) {
		s.action = a
	}
}

// OnEnd replaces the end action with fn.
func OnEnd(fn func(ctx context.Context, h *Handle) error) SinkOption {
	return func(s *Sink) {
		s.onEnd = fn
	}
}

// WithSinkTimeout bounds how long writes wait for the handle to run. Zero
// waits as long as the write's context allows.
func WithSinkTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		s.timeout = d
	}
}

// Sink returns a sink that sends plain values under name, or under the
// protocol's input name when name is empty.
func (h *Handle) Sink(name string, opts ...SinkOption) *Sink {
	if name == "" {
		name = h.opts.Protocol.InputName
	}
	s := &Sink{
		h:       h,
		name:    name,
		timeout: h.opts.WriteTimeout,
		action:  SendSentinel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Sink) Name() string {
	return s.name
}

// Write translates v into an event and sends it. A [name, value] pair named
// with the end-of-stream event closes the sink instead.
func (s *Sink) Write(ctx context.Context, v any) error {
	if s.Ended() {
		return ErrStreamAlreadyEnded
	}

	ev := toEvent(s.name, v)
	if s.h.opts.Protocol.IsEndOfStream(ev) {
		return s.Close(ctx)
	}
	if err := s.waitRunning(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return ErrStreamAlreadyEnded
	}
	return s.h.Send(ev)
}

func (s *Sink) waitRunning(ctx context.Context) error {
	select {
	case <-s.h.Running():
		return nil
	default:
	}

	var timeout <-chan time.Time
	if s.timeout > 0 {
		t := time.NewTimer(s.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-s.h.Running():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return ErrNotRunning
	}
}

// Close ends the sink and runs its end action once. Writes in flight finish
// before the end action runs.
func (s *Sink) Close(ctx context.Context) error {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.ended = true
		s.mu.Unlock()
		s.endErr = s.runEnd(ctx)
	})
	return s.endErr
}

func (s *Sink) runEnd(ctx context.Context) error {
	if s.onEnd != nil {
		return s.onEnd(ctx, s.h)
	}

	switch s.action {
	case SendSentinel:
		if err := s.waitRunning(ctx); err != nil {
			return err
		}
		return s.h.Send(s.h.opts.Protocol.EndOfInputEvent(s.name))
	case CloseHandle:
		s.h.Close()
	}
	return nil
}

func (s *Sink) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}
